package domain

import "strings"

// BlockKind classifies an evidence block of the answer prompt.
type BlockKind int

const (
	BlockNotice BlockKind = iota
	BlockProductDoc
	BlockVectorSnippet
	BlockDataSnippet
	BlockCatalogSummary
	BlockSystemDoc
	BlockCompanyInfo
)

func (k BlockKind) String() string {
	switch k {
	case BlockProductDoc:
		return "product_doc"
	case BlockVectorSnippet:
		return "vector_snippet"
	case BlockDataSnippet:
		return "data_snippet"
	case BlockCatalogSummary:
		return "catalog_summary"
	case BlockSystemDoc:
		return "system_doc"
	case BlockCompanyInfo:
		return "company_info"
	default:
		return "notice"
	}
}

func (k BlockKind) header() string {
	switch k {
	case BlockProductDoc:
		return "產品文件"
	case BlockVectorSnippet:
		return "向量庫片段"
	case BlockDataSnippet:
		return "資料片段"
	case BlockCatalogSummary:
		return "DB 產品摘要"
	case BlockSystemDoc:
		return "系統文件(BM25)"
	case BlockCompanyInfo:
		return "公司資訊"
	default:
		return ""
	}
}

// ContextBlock is one rendered unit of evidence. The first rendered line is
// the header; Body follows it.
type ContextBlock struct {
	Kind  BlockKind `json:"kind"`
	Label string    `json:"label,omitempty"`
	Body  string    `json:"body"`
}

func (b ContextBlock) Header() string {
	h := b.Kind.header()
	if h == "" {
		return ""
	}
	if b.Label == "" {
		return "【" + h + "】"
	}
	return "【" + h + "：" + b.Label + "】"
}

func (b ContextBlock) Render() string {
	header := b.Header()
	body := strings.TrimSpace(b.Body)
	if header == "" {
		return body
	}
	if body == "" {
		return header
	}
	return header + "\n" + body
}

// IsVector reports whether the block came from similarity search.
func (b ContextBlock) IsVector() bool {
	return b.Kind == BlockVectorSnippet || b.Kind == BlockDataSnippet
}
