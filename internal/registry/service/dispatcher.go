package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mzDeaThly/data-spf/internal/line"
	"github.com/mzDeaThly/data-spf/internal/registry/render"
	"github.com/mzDeaThly/data-spf/internal/registry/types"
)

// Reply texts.
const (
	MsgUserIDNotFound   = "ไม่พบ User ID"
	MsgGroupOnly        = "คำสั่งนี้ใช้ได้เฉพาะในกลุ่มหรือห้องแชทเท่านั้น"
	MsgDenied           = "คุณไม่มีสิทธิ์ใช้งานระบบนี้ กรุณาติดต่อผู้ดูแล"
	MsgEmptyQuery       = "กรุณาพิมพ์ทะเบียนรถที่ต้องการค้นหา"
	msgNoFreshMatchTmpl = "ไม่พบข้อมูลทะเบียนที่ค้นหา หรือข้อมูลเกิน %d วันแล้ว"

	cmdUserID  = "/userid"
	cmdGroupID = "/groupid"
)

// NoFreshMatchText is the reply when nothing fresh matched.
func NoFreshMatchText(maxAgeDays int) string {
	return fmt.Sprintf(msgNoFreshMatchTmpl, maxAgeDays)
}

// Replier delivers reply messages for a reply token.
type Replier interface {
	Reply(ctx context.Context, replyToken string, messages ...line.ReplyMessage) error
}

type DispatcherDeps struct {
	Gate     *PermissionGate
	Profiles *ProfileResolver
	Search   *RegistrySearch
	Audit    *AuditRecorder
	Replier  Replier

	// MaxAgeDays is read once per Dispatch call.
	MaxAgeDays func() int

	Logger *zap.Logger
}

// Dispatcher runs the per-event query pipeline for a verified webhook.
type Dispatcher struct {
	gate       *PermissionGate
	profiles   *ProfileResolver
	search     *RegistrySearch
	audit      *AuditRecorder
	replier    Replier
	maxAgeDays func() int
	log        *zap.Logger
}

func NewDispatcher(d DispatcherDeps) *Dispatcher {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	maxAge := d.MaxAgeDays
	if maxAge == nil {
		maxAge = func() int { return 35 }
	}
	return &Dispatcher{
		gate:       d.Gate,
		profiles:   d.Profiles,
		search:     d.Search,
		audit:      d.Audit,
		replier:    d.Replier,
		maxAgeDays: maxAge,
		log:        log,
	}
}

// Dispatch handles events in order. A failing event is logged and skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, events []line.Event) {
	maxAge := d.maxAgeDays()
	for i, ev := range events {
		d.handleSafe(ctx, i, ev, maxAge)
	}
}

func (d *Dispatcher) handleSafe(ctx context.Context, idx int, ev line.Event, maxAge int) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("webhook event panicked",
				zap.Int("event_index", idx),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()
	d.handle(ctx, ev, maxAge)
}

func (d *Dispatcher) handle(ctx context.Context, ev line.Event, maxAge int) {
	if !ev.IsText() {
		return
	}

	src := ev.Source
	userID := strings.TrimSpace(src.UserID)
	groupID := strings.TrimSpace(src.ContextID())

	text := strings.TrimSpace(ev.Message.Text)
	switch strings.ToLower(text) {
	case cmdUserID:
		d.reply(ctx, ev.ReplyToken, line.TextMessage{Text: d.userIDText(ctx, userID)})
		return
	case cmdGroupID:
		d.reply(ctx, ev.ReplyToken, line.TextMessage{Text: d.groupIDText(ctx, src, groupID)})
		return
	}

	allowed, err := d.gate.IsAuthorized(ctx, userID, groupID)
	if err != nil {
		d.log.Error("permission check failed",
			zap.String("user_id", userID),
			zap.String("group_id", groupID),
			zap.Error(err))
		return
	}

	entry := AuditEntry{
		SourceType: sourceType(src),
		UserID:     userID,
		GroupID:    groupID,
		QueryText:  text,
	}

	if !allowed {
		entry.ActorName, entry.ContextName = d.names(ctx, src, groupID)
		d.audit.Record(ctx, entry)
		d.reply(ctx, ev.ReplyToken, line.TextMessage{Text: MsgDenied})
		return
	}

	if text == "" {
		d.reply(ctx, ev.ReplyToken, line.TextMessage{Text: MsgEmptyQuery})
		return
	}

	var results []types.Vehicle
	g, gctx := errgroup.WithContext(ctx)
	g.Go(recovered(func() error {
		entry.ActorName, entry.ContextName = d.names(gctx, src, groupID)
		return nil
	}))
	g.Go(recovered(func() error {
		var err error
		results, err = d.search.Search(gctx, text, maxAge)
		return err
	}))
	if err := g.Wait(); err != nil {
		d.log.Error("registry search failed", zap.String("query", text), zap.Error(err))
		return
	}

	matched := len(results)
	entry.Allowed = true
	entry.MatchedCount = &matched
	d.audit.Record(ctx, entry)

	if matched == 0 {
		d.reply(ctx, ev.ReplyToken, line.TextMessage{Text: NoFreshMatchText(maxAge)})
		return
	}
	d.reply(ctx, ev.ReplyToken, render.Message(results, d.search.Today()))
}

// names resolves the actor's LINE display name and the operator-configured
// group name concurrently. Both are best-effort.
func (d *Dispatcher) names(ctx context.Context, src line.Source, groupID string) (actor, group *string) {
	var g errgroup.Group
	g.Go(recovered(func() error {
		if name, ok := d.profiles.ResolveDisplayName(ctx, src); ok {
			actor = &name
		}
		return nil
	}))
	g.Go(recovered(func() error {
		if name, ok := d.gate.DisplayName(ctx, types.PermissionGroup, groupID); ok {
			group = &name
		}
		return nil
	}))
	if err := g.Wait(); err != nil {
		d.log.Warn("display name lookup failed", zap.Error(err))
	}
	return actor, group
}

// recovered turns a panic in an errgroup task into its error, since the
// per-event recover cannot see other goroutines.
func recovered(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	}
}

func (d *Dispatcher) userIDText(ctx context.Context, userID string) string {
	if userID == "" {
		return MsgUserIDNotFound
	}
	text := "User ID: " + userID
	if name, ok := d.gate.DisplayName(ctx, types.PermissionUser, userID); ok {
		text += "\nชื่อ: " + name
	}
	return text
}

func (d *Dispatcher) groupIDText(ctx context.Context, src line.Source, groupID string) string {
	if !src.IsGroupContext() || groupID == "" {
		return MsgGroupOnly
	}
	text := "Group ID: " + groupID
	if name, ok := d.gate.DisplayName(ctx, types.PermissionGroup, groupID); ok {
		text += "\nชื่อ: " + name
	}
	return text
}

func (d *Dispatcher) reply(ctx context.Context, token string, msgs ...line.ReplyMessage) {
	if d.replier == nil {
		return
	}
	if err := d.replier.Reply(ctx, token, msgs...); err != nil {
		d.log.Warn("line reply failed", zap.Error(err))
	}
}

func sourceType(src line.Source) types.SourceType {
	switch src.Type {
	case line.SourceTypeGroup:
		return types.SourceGroup
	case line.SourceTypeRoom:
		return types.SourceRoom
	default:
		return types.SourceUser
	}
}
