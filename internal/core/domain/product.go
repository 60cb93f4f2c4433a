package domain

// ProductRecord is one product document of the catalog directory.
type ProductRecord struct {
	Stem        string `json:"stem"`
	DisplayName string `json:"display_name,omitempty"`
	ModelCode   string `json:"model_code,omitempty"`
	Path        string `json:"path"`
	RawText     string `json:"-"`
}

// Filename returns the catalog file name of the record.
func (r ProductRecord) Filename() string {
	return "product_" + r.Stem + ".md"
}

// ProductCard is a structured product row from the card database.
type ProductCard struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	Model          string `json:"model,omitempty"`
	Category       string `json:"category,omitempty"`
	URL            string `json:"url,omitempty"`
	Description    string `json:"description,omitempty"`
	Specifications string `json:"specifications,omitempty"`
}

// CompanyInfo holds fields parsed from the company profile document.
type CompanyInfo struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Website string `json:"website,omitempty"`
	Hours   string `json:"hours,omitempty"`
	Raw     string `json:"-"`
}

func (c CompanyInfo) IsZero() bool {
	return c.Name == "" && c.Address == "" && c.Phone == "" && c.Email == "" && c.Website == "" && c.Hours == ""
}
