package usecase

import (
	"strings"

	"github.com/kirillkom/product-advisor/internal/core/domain"
)

// PromptInput is everything the answer prompt is rendered from.
type PromptInput struct {
	Question  string
	Intent    domain.Intent
	Blocks    []domain.ContextBlock
	Mode      domain.AnswerMode
	History   []domain.Message
	Allowlist []string
}

// PromptBuilder renders answer prompts with fixed rules and settings.
type PromptBuilder struct {
	Brand           string
	Version         string
	Strict          bool
	MaxAllowItems   int
	MaxHistoryTurns int
}

// Build renders the full prompt. Blocks render in order and are joined by
// separator lines.
func (p PromptBuilder) Build(in PromptInput) string {
	var sys strings.Builder
	sys.WriteString("你是" + p.Brand + "的企業客服與產品選型助理。\n")
	sys.WriteString("規則：\n")
	sys.WriteString("1) 優先使用「提供的資料內容」回答，不要編造不存在的規格數字/不存在的產品型號。\n")
	sys.WriteString("2) 若資料不足，請用：『資料中尚未包含：XXX』並提出最多 2 個關鍵補充問題。\n")
	sys.WriteString("3) 回答用繁體中文，條列清楚。\n")
	sys.WriteString("4) 一般模式：8~14 行；快速模式：4~8 行。\n")

	allow := p.allowlist(in.Allowlist)
	if in.Intent.IsProduct() {
		sys.WriteString("5) 選型/產品問題請用顧問式：\n")
		sys.WriteString("   - 先列候選型號（2~3）\n")
		sys.WriteString("   - 再比較差異與適用情境\n")
		sys.WriteString("   - 再列不適用/風險\n")
		sys.WriteString("   - 最後給明確建議與下一步\n")
		if len(allow) > 0 {
			sys.WriteString("6) 【嚴格限制】若需要列出候選型號：只能使用「候選清單」裡的型號；\n")
			sys.WriteString("   絕對禁止編造/猜測/自創任何不在清單內的型號。\n")
			sys.WriteString("   如果清單不足以選出 2~3 台：請明確說『資料庫目前沒有對應型號』，並提出最多 2 個補充問題。\n")
		}
	}

	rendered := make([]string, 0, len(in.Blocks))
	for _, b := range in.Blocks {
		if r := b.Render(); strings.TrimSpace(r) != "" {
			rendered = append(rendered, r)
		}
	}

	modeHint := "（一般模式：完整回答）"
	if in.Mode == domain.ModeFast {
		modeHint = "（快速模式：精簡回答）"
	}

	var out strings.Builder
	out.WriteString(sys.String())
	out.WriteString("\n" + modeHint + "\n")
	out.WriteString("PromptVersion=" + p.Version + "\n\n")
	out.WriteString(p.history(in.History))
	if len(allow) > 0 {
		out.WriteString("【候選清單（只能從這裡挑型號）】\n" + strings.Join(allow, "、") + "\n\n")
	}
	out.WriteString("【資料內容】\n" + strings.Join(rendered, "\n\n---\n\n") + "\n\n")
	out.WriteString("【使用者問題】\n" + in.Question + "\n\n")
	out.WriteString("請直接給出答案：")
	return out.String()
}

func (p PromptBuilder) allowlist(items []string) []string {
	if !p.Strict || len(items) == 0 {
		return nil
	}
	if p.MaxAllowItems > 0 && len(items) > p.MaxAllowItems {
		return items[:p.MaxAllowItems]
	}
	return items
}

func (p PromptBuilder) history(msgs []domain.Message) string {
	if len(msgs) == 0 {
		return ""
	}
	if n := p.MaxHistoryTurns * 2; n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	var lines []string
	for _, m := range msgs {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		switch m.Role {
		case domain.RoleUser:
			lines = append(lines, "使用者："+content)
		case domain.RoleAssistant:
			lines = append(lines, "助理："+content)
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "【對話歷史】\n" + strings.Join(lines, "\n") + "\n\n"
}
