package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/product-advisor/internal/core/budget"
	"github.com/kirillkom/product-advisor/internal/core/catalog"
	"github.com/kirillkom/product-advisor/internal/core/company"
	"github.com/kirillkom/product-advisor/internal/core/domain"
	"github.com/kirillkom/product-advisor/internal/core/fusion"
	"github.com/kirillkom/product-advisor/internal/core/generation"
	"github.com/kirillkom/product-advisor/internal/core/guard"
	"github.com/kirillkom/product-advisor/internal/core/intent"
	"github.com/kirillkom/product-advisor/internal/core/ports"
	"github.com/kirillkom/product-advisor/internal/core/requirement"
	"github.com/kirillkom/product-advisor/internal/core/session"
)

const (
	defaultSessionID = "default"
	ridLength        = 10
	lexicalTopInMeta = 10

	rateLimitReply = "⏳ 你輸入得太快了，我正在處理上一個請求。請稍等 1 秒再送出。"
	busyReply      = "⚠️ 系統目前忙碌中（同時詢問人數較多）。請稍後 5~10 秒再試一次。"
)

var questionSpaceRe = regexp.MustCompile(`\s+`)

// ChatConfig holds the answer-pipeline knobs.
type ChatConfig struct {
	AnswerModel         string
	TopKNormal          int
	TopKFast            int
	NormalTemperature   float64
	NormalNumPredict    int
	FastTemperature     float64
	FastNumPredict      int
	MaxPromptChars      int
	SessionMaxTurns     int
	MinRequestInterval  time.Duration
	SessionCacheEnabled bool
	AppendContact       bool
	AllowlistMaxItems   int
	ForceNonEmpty       bool
	PromptVersion       string
	Brand               string
}

// CompanyProfile returns the current company profile.
type CompanyProfile interface {
	Get() domain.CompanyInfo
}

// ChatObserver receives pipeline measurements.
type ChatObserver interface {
	ObserveChat(intent domain.Intent, allowlist int, blocked, lowConfidence bool)
	ObserveGeneration(outcome string, d time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveChat(domain.Intent, int, bool, bool) {}
func (noopObserver) ObserveGeneration(string, time.Duration) {}

// ChatDeps wires the collaborators of ChatUseCase. Fingerprint and Observer
// are optional.
type ChatDeps struct {
	Sessions    ports.SessionStore
	Locks       *session.Locks
	Catalog     *catalog.Index
	Context     *ContextBuilder
	Classifier  *intent.Classifier
	Machine     *requirement.Machine
	Fuser       *fusion.Fuser
	Enforcer    *guard.Enforcer
	Company     CompanyProfile
	Generator   ports.TextGenerator
	Gate        *generation.Gate
	Cancels     *generation.Registry
	Fingerprint ports.Fingerprinter
	Observer    ChatObserver
}

type ChatUseCase struct {
	deps    ChatDeps
	cfg     ChatConfig
	prompts PromptBuilder
	logger  *slog.Logger
	now     func() time.Time
}

func NewChatUseCase(deps ChatDeps, cfg ChatConfig, logger *slog.Logger) *ChatUseCase {
	if cfg.TopKNormal <= 0 {
		cfg.TopKNormal = 6
	}
	if cfg.TopKFast <= 0 {
		cfg.TopKFast = 3
	}
	if cfg.NormalNumPredict <= 0 {
		cfg.NormalNumPredict = 1100
	}
	if cfg.FastNumPredict <= 0 {
		cfg.FastNumPredict = 520
	}
	if cfg.MaxPromptChars <= 0 {
		cfg.MaxPromptChars = 14000
	}
	if cfg.SessionMaxTurns <= 0 {
		cfg.SessionMaxTurns = 10
	}
	if cfg.AllowlistMaxItems <= 0 {
		cfg.AllowlistMaxItems = guard.DefaultMaxItems
	}
	if deps.Locks == nil {
		deps.Locks = session.NewLocks()
	}
	if deps.Machine == nil {
		deps.Machine = requirement.NewMachine(nil)
	}
	if deps.Cancels == nil {
		deps.Cancels = generation.NewRegistry()
	}
	if deps.Observer == nil {
		deps.Observer = noopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatUseCase{
		deps: deps,
		cfg:  cfg,
		prompts: PromptBuilder{
			Brand:           cfg.Brand,
			Version:         cfg.PromptVersion,
			Strict:          deps.Enforcer != nil && deps.Enforcer.Strict(),
			MaxAllowItems:   cfg.AllowlistMaxItems,
			MaxHistoryTurns: cfg.SessionMaxTurns,
		},
		logger: logger,
		now:    time.Now,
	}
}

// admission is the outcome of the locked first phase of a turn.
type admission struct {
	done       bool
	history    []domain.Message
	extraTerms []string
}

// Handle answers one chat turn.
func (uc *ChatUseCase) Handle(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	started := uc.now()
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat", errors.New("message is required"))
	}
	sid := strings.TrimSpace(req.SessionID)
	if sid == "" {
		sid = defaultSessionID
	}
	rid := strings.TrimSpace(req.RequestID)
	if rid == "" {
		rid = newRequestID()
	}
	mode := NormalizeMode(string(req.Mode))

	resp := &domain.ChatResponse{
		SessionID:     sid,
		RequestID:     rid,
		Mode:          mode,
		Cards:         []domain.ProductCard{},
		PromptVersion: uc.cfg.PromptVersion,
	}
	finish := func(err error) (*domain.ChatResponse, error) {
		resp.ElapsedMS = uc.now().Sub(started).Milliseconds()
		return resp, err
	}

	resp.Fingerprint = uc.fingerprint(ctx)
	normQ := NormalizeQuestion(text)

	adm, err := uc.admit(ctx, resp, text, normQ)
	if err != nil {
		if domain.IsKind(err, domain.ErrRateLimited) {
			uc.deps.Observer.ObserveChat(resp.Intent, 0, false, false)
			return finish(err)
		}
		return nil, err
	}
	if adm.done {
		uc.deps.Observer.ObserveChat(resp.Intent, 0, false, false)
		return finish(nil)
	}

	topK := uc.cfg.TopKNormal
	if mode == domain.ModeFast {
		topK = uc.cfg.TopKFast
	}

	searchText := text
	var label domain.Intent
	if len(adm.extraTerms) > 0 {
		label = domain.IntentDecisionResult
		searchText = text + "\n\n（需求摘要：" + strings.Join(adm.extraTerms, " / ") + "）"
	} else {
		label = uc.deps.Classifier.Classify(ctx, text)
	}
	resp.Intent = label
	uc.logger.Info("chat_start", "request_id", rid, "session_id", sid, "intent", label, "mode", mode, "top_k", topK, "question", text)

	var (
		pc     ProductContext
		blocks []domain.ContextBlock
	)
	info := uc.companyInfo()
	switch {
	case label.IsProduct():
		pc = uc.deps.Context.Product(ctx, searchText, adm.extraTerms, topK)
		blocks = pc.Blocks
		resp.QueryTerms = pc.QueryTerms
		if pc.Cards != nil {
			resp.Cards = pc.Cards
		}
	case label == domain.IntentCompanyInfo:
		blocks = []domain.ContextBlock{company.ContextBlock(info, text)}
		if card, ok := companyCard(info, uc.cfg.Brand); ok {
			resp.Cards = []domain.ProductCard{card}
		}
	default:
		blocks = uc.deps.Context.General(ctx, text, topK)
	}
	if len(blocks) == 0 {
		blocks = uc.deps.Context.SystemFallback(text)
	}
	if len(blocks) == 0 {
		blocks = []domain.ContextBlock{{Kind: domain.BlockNotice, Body: noEvidenceNotice}}
	}

	vecBlocks, cardBlocks := countBlocks(blocks)
	strong := len(pc.UsedFiles) > 0 || vecBlocks > 0 || cardBlocks > 0

	strict := uc.deps.Enforcer != nil && uc.deps.Enforcer.Strict()
	var (
		allow []string
		meta  *domain.FusionMeta
	)
	if label.IsProduct() && strict {
		source := guard.SourceAllowlist(pc.Cards, pc.UsedFiles, uc.cfg.AllowlistMaxItems)
		var fused fusion.Result
		if uc.deps.Fuser != nil {
			fused = uc.deps.Fuser.Build(pc.LexicalTop, pc.VectorHits)
		}
		merged, forced := guard.Merge(source, fused.Allow, uc.deps.Catalog.KnownModels(), uc.cfg.AllowlistMaxItems, uc.cfg.ForceNonEmpty)
		m := fused.Meta
		m.ForcedAllowAll = forced
		allow, meta = merged, &m
	}
	resp.Allowlist = allow
	resp.Sources = &domain.AnswerSources{
		ProductDocs:  nonNil(pc.UsedFiles),
		VectorBlocks: vecBlocks,
		CardBlocks:   cardBlocks,
		LexicalTop:   nonNil(headStrings(pc.LexicalTop, lexicalTopInMeta)),
		Fusion:       meta,
	}

	render := func(bs []domain.ContextBlock) string {
		return uc.prompts.Build(PromptInput{
			Question:  searchText,
			Intent:    label,
			Blocks:    bs,
			Mode:      mode,
			History:   adm.history,
			Allowlist: allow,
		})
	}
	var answer string
	if label.IsProduct() && strict && len(allow) == 0 {
		uc.logger.Warn("allowlist_empty", "request_id", rid, "session_id", sid)
		answer = guard.ClarificationReply
		resp.Blocked = true
	} else {
		_, prompt := budget.Trim(blocks, render, uc.cfg.MaxPromptChars)
		generated, genErr := uc.generate(ctx, resp, prompt, mode)
		if genErr != nil {
			if resp.Intent == domain.IntentBusy || resp.Intent == domain.IntentCancelled {
				uc.deps.Observer.ObserveChat(resp.Intent, len(allow), false, false)
				return finish(genErr)
			}
			return nil, genErr
		}
		answer = generated

		if label.IsProduct() && strict {
			verdict := uc.deps.Enforcer.Enforce(answer, allow)
			answer = verdict.Text
			resp.Blocked = verdict.Blocked
			resp.BadModels = verdict.BadModels
			if verdict.Blocked {
				uc.logger.Warn("allowlist_blocked", "request_id", rid, "bad_models", verdict.BadModels, "allowlist", len(allow))
			}
		}
	}

	final := answer
	if uc.cfg.AppendContact {
		final = guard.AppendContact(answer, uc.cfg.Brand, info.Phone, strong)
	}
	unanswerable := guard.LooksUnanswerable(answer, strong)
	if unanswerable && label != domain.IntentCompanyInfo {
		if card, ok := companyCard(info, uc.cfg.Brand); ok {
			resp.Cards = append([]domain.ProductCard{card}, resp.Cards...)
		}
	}
	resp.Answer = final

	if err := uc.persist(ctx, sid, text, final, normQ, resp.Fingerprint, label); err != nil {
		return nil, err
	}

	lowConf := meta != nil && meta.LowConfidence
	uc.deps.Observer.ObserveChat(label, len(allow), resp.Blocked, lowConf)
	out, _ := finish(nil)
	uc.logger.Info("chat_done",
		"request_id", rid,
		"intent", label,
		"elapsed_ms", out.ElapsedMS,
		"generation_ms", out.GenerationMS,
		"unanswerable", unanswerable,
		"allowlist", len(allow),
		"blocked", resp.Blocked,
		"bad_models", resp.BadModels,
	)
	return out, nil
}

// admit runs the locked first phase: debounce, answer cache, requirement
// interview and FAQ. It stamps the arrival time on the session.
func (uc *ChatUseCase) admit(ctx context.Context, resp *domain.ChatResponse, text, normQ string) (admission, error) {
	unlock := uc.deps.Locks.Lock(resp.SessionID)
	defer unlock()

	sess, err := uc.deps.Sessions.Load(ctx, resp.SessionID)
	if err != nil {
		return admission{}, fmt.Errorf("load session: %w", err)
	}
	now := uc.now()
	if uc.cfg.MinRequestInterval > 0 && !sess.LastUserAt.IsZero() && now.Sub(sess.LastUserAt) < uc.cfg.MinRequestInterval {
		resp.Intent = domain.IntentRateLimit
		resp.Answer = rateLimitReply
		return admission{done: true}, domain.WrapError(domain.ErrRateLimited, "chat", errors.New("request interval too short"))
	}
	sess.LastUserAt = now

	if uc.cfg.SessionCacheEnabled && sess.Cache != nil && sess.Cache.Answer != "" &&
		sess.Cache.Question == normQ && sess.Cache.Fingerprint == resp.Fingerprint {
		uc.logger.Info("chat_cache_hit", "request_id", resp.RequestID, "session_id", resp.SessionID)
		resp.Intent = domain.IntentCached
		resp.Answer = sess.Cache.Answer
		resp.Cached = true
		return admission{done: true}, uc.save(ctx, sess)
	}

	state := sess.Requirement
	if !state.Active {
		if reply, ok := intent.FAQ(text); ok {
			uc.appendTurn(sess, text, reply)
			resp.Intent = domain.IntentFAQ
			resp.Answer = reply
			return admission{done: true}, uc.save(ctx, sess)
		}
	}
	if !state.Active && !state.Finished && requirement.ShouldEnter(text) {
		state = uc.deps.Machine.Start()
	}
	if state.Active {
		next, reply := uc.deps.Machine.Advance(state, text)
		sess.Requirement = next
		uc.appendTurn(sess, text, reply)
		resp.Intent = domain.IntentDecision
		resp.Answer = reply
		resp.Requirement = &next
		if card, ok := companyCard(uc.companyInfo(), uc.cfg.Brand); ok {
			resp.Cards = []domain.ProductCard{card}
		}
		return admission{done: true}, uc.save(ctx, sess)
	}

	var extra []string
	if state.Finished {
		extra = requirement.BuildQueryTerms(state.Answers)
		sess.Requirement = domain.ConversationState{}
	}
	history := append([]domain.Message(nil), sess.Messages...)
	if err := uc.save(ctx, sess); err != nil {
		return admission{}, err
	}
	return admission{history: history, extraTerms: extra}, nil
}

// generate waits for a generation slot and streams the answer. Busy and
// cancelled turns fill resp and return an error of the matching kind.
func (uc *ChatUseCase) generate(ctx context.Context, resp *domain.ChatResponse, prompt string, mode domain.AnswerMode) (string, error) {
	gctx, token, done := uc.deps.Cancels.Register(ctx, resp.RequestID)
	defer done()

	release, err := uc.deps.Gate.Acquire(gctx)
	if err != nil {
		switch {
		case token.Cancelled():
			return "", uc.cancelled(resp, err)
		case domain.IsKind(err, domain.ErrBusy):
			uc.logger.Warn("generation_busy", "request_id", resp.RequestID)
			uc.deps.Observer.ObserveGeneration("busy", 0)
			resp.Intent = domain.IntentBusy
			resp.Answer = busyReply
			return "", err
		default:
			return "", fmt.Errorf("acquire generation slot: %w", err)
		}
	}
	defer release()

	temp, numPredict := uc.cfg.NormalTemperature, uc.cfg.NormalNumPredict
	if mode == domain.ModeFast {
		temp, numPredict = uc.cfg.FastTemperature, uc.cfg.FastNumPredict
	}
	started := uc.now()
	answer, err := uc.deps.Generator.Generate(gctx, domain.GenerationRequest{
		Model:       uc.cfg.AnswerModel,
		Prompt:      prompt,
		Temperature: temp,
		NumPredict:  numPredict,
		Cancel:      token,
	})
	elapsed := uc.now().Sub(started)
	resp.GenerationMS = elapsed.Milliseconds()
	if err != nil {
		if token.Cancelled() || errors.Is(err, domain.ErrCancelled) {
			return "", uc.cancelled(resp, err)
		}
		uc.deps.Observer.ObserveGeneration("error", elapsed)
		uc.logger.Error("generation_failed", "request_id", resp.RequestID, "error", err)
		return "", fmt.Errorf("generate answer: %w", err)
	}
	uc.deps.Observer.ObserveGeneration("ok", elapsed)
	return strings.TrimSpace(answer), nil
}

func (uc *ChatUseCase) cancelled(resp *domain.ChatResponse, err error) error {
	uc.logger.Info("generation_cancelled", "request_id", resp.RequestID)
	uc.deps.Observer.ObserveGeneration("cancelled", 0)
	resp.Intent = domain.IntentCancelled
	resp.Answer = ""
	if errors.Is(err, domain.ErrCancelled) {
		return err
	}
	return domain.WrapError(domain.ErrCancelled, "generate answer", err)
}

// persist appends the turn and the answer cache under the session lock.
func (uc *ChatUseCase) persist(ctx context.Context, sid, question, answer, normQ, fp string, label domain.Intent) error {
	unlock := uc.deps.Locks.Lock(sid)
	defer unlock()

	sess, err := uc.deps.Sessions.Load(ctx, sid)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	uc.appendTurn(sess, question, answer)
	sess.Cache = &domain.AnswerCache{Question: normQ, Fingerprint: fp, Answer: answer, Intent: label}
	return uc.save(ctx, sess)
}

func (uc *ChatUseCase) appendTurn(sess *domain.Session, question, answer string) {
	now := uc.now().UTC()
	limit := uc.cfg.SessionMaxTurns * 2
	sess.Append(domain.Message{Role: domain.RoleUser, Content: question, At: now}, limit)
	sess.Append(domain.Message{Role: domain.RoleAssistant, Content: answer, At: now}, limit)
}

func (uc *ChatUseCase) save(ctx context.Context, sess *domain.Session) error {
	sess.UpdatedAt = uc.now().UTC()
	if err := uc.deps.Sessions.Save(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (uc *ChatUseCase) fingerprint(ctx context.Context) string {
	if uc.deps.Fingerprint == nil {
		return ""
	}
	fp, err := uc.deps.Fingerprint.Fingerprint(ctx)
	if err != nil {
		uc.logger.Warn("fingerprint_failed", "error", err)
		return ""
	}
	return fp
}

func (uc *ChatUseCase) companyInfo() domain.CompanyInfo {
	if uc.deps.Company == nil {
		return domain.CompanyInfo{}
	}
	return uc.deps.Company.Get()
}

// Cancel flags the in-flight request rid.
func (uc *ChatUseCase) Cancel(rid string) bool {
	rid = strings.TrimSpace(rid)
	if rid == "" {
		return false
	}
	return uc.deps.Cancels.Cancel(rid)
}

// Clear forgets a session.
func (uc *ChatUseCase) Clear(ctx context.Context, sessionID string) error {
	sid := strings.TrimSpace(sessionID)
	if sid == "" {
		sid = defaultSessionID
	}
	unlock := uc.deps.Locks.Lock(sid)
	defer unlock()
	if err := uc.deps.Sessions.Delete(ctx, sid); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// NormalizeQuestion lowercases and collapses whitespace for cache keys.
func NormalizeQuestion(s string) string {
	return questionSpaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

// NormalizeMode maps free-form mode names to FAST or NORMAL.
func NormalizeMode(mode string) domain.AnswerMode {
	if domain.AnswerMode(strings.ToUpper(strings.TrimSpace(mode))) == domain.ModeFast {
		return domain.ModeFast
	}
	return domain.ModeNormal
}

func newRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:ridLength]
}

func countBlocks(blocks []domain.ContextBlock) (vector, cards int) {
	for _, b := range blocks {
		switch {
		case b.IsVector():
			vector++
		case b.Kind == domain.BlockCatalogSummary:
			cards++
		}
	}
	return vector, cards
}

// companyCard renders the profile as a reference card.
func companyCard(info domain.CompanyInfo, brand string) (domain.ProductCard, bool) {
	if info.IsZero() {
		return domain.ProductCard{}, false
	}
	name := strings.TrimSpace(info.Name)
	if name == "" {
		name = brand
	}
	var lines []string
	if info.Phone != "" {
		lines = append(lines, "電話："+info.Phone)
	}
	if info.Address != "" {
		lines = append(lines, "地址："+info.Address)
	}
	if info.Hours != "" {
		lines = append(lines, "營業時間：\n"+info.Hours)
	}
	return domain.ProductCard{
		Title:       name,
		Category:    "公司資訊",
		URL:         info.Website,
		Description: strings.Join(lines, "\n"),
	}, true
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
