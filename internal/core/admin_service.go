package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/A7-pro/mikerobot/internal/store"
)

var (
	ErrEmptyInstruction         = errors.New("instruction is empty")
	ErrTemplateInvalid          = errors.New("template name and prompt are required")
	ErrTemplateNameTaken        = errors.New("a template with this name already exists")
	ErrTemplateNotFound         = errors.New("template not found")
	ErrDefaultTemplateImmutable = errors.New("the default template cannot be changed")
	ErrEmptyAnnouncement        = errors.New("announcement message is empty")
)

// DefaultTemplateID identifies the built-in personality. It is never stored.
const DefaultTemplateID = "system-default"

// ChangeListener is told when shared admin state changes so live sessions can pick it up.
type ChangeListener interface {
	InstructionChanged(ctx context.Context)
	AnnouncementChanged(ctx context.Context)
}

type AdminService struct {
	repo       *store.Repository
	listener   ChangeListener
	adminEmail string
	now        func() time.Time
}

func NewAdminService(repo *store.Repository, listener ChangeListener, adminEmail string) *AdminService {
	return &AdminService{
		repo:       repo,
		listener:   listener,
		adminEmail: normalizeIdentity(adminEmail),
		now:        time.Now,
	}
}

func defaultTemplate() store.PersonalityTemplate {
	return store.PersonalityTemplate{
		ID:              DefaultTemplateID,
		Name:            defaultTemplateName,
		Prompt:          BaseInstructionBody(),
		IsSystemDefault: true,
	}
}

// Instruction

// SystemInstruction returns the active override, or the base personality when none is set.
func (a *AdminService) SystemInstruction(ctx context.Context) (string, bool, error) {
	override, err := a.repo.AdminInstruction(ctx)
	if err != nil {
		return "", false, err
	}
	if strings.TrimSpace(override) == "" {
		return BaseInstructionBody(), false, nil
	}
	return override, true, nil
}

func (a *AdminService) SaveInstruction(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInstruction
	}
	if err := a.repo.SaveAdminInstruction(ctx, text); err != nil {
		return err
	}
	log.Info().Int("length", len(text)).Msg("admin instruction saved")
	a.listener.InstructionChanged(ctx)
	return nil
}

func (a *AdminService) ClearInstruction(ctx context.Context) error {
	if err := a.repo.ClearAdminInstruction(ctx); err != nil {
		return err
	}
	log.Info().Msg("admin instruction cleared")
	a.listener.InstructionChanged(ctx)
	return nil
}

// Templates

// Templates lists the default template first, then every valid stored one.
func (a *AdminService) Templates(ctx context.Context) ([]store.PersonalityTemplate, error) {
	stored, err := a.storedTemplates(ctx)
	if err != nil {
		return nil, err
	}
	return append([]store.PersonalityTemplate{defaultTemplate()}, stored...), nil
}

func (a *AdminService) storedTemplates(ctx context.Context) ([]store.PersonalityTemplate, error) {
	ts, err := a.repo.Templates(ctx)
	if err != nil {
		return nil, err
	}
	out := ts[:0]
	for _, t := range ts {
		if t.ID == "" || t.ID == DefaultTemplateID || t.IsSystemDefault {
			continue
		}
		if strings.TrimSpace(t.Name) == "" || strings.TrimSpace(t.Prompt) == "" {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// SaveTemplate creates a template when t.ID is empty and updates it otherwise.
func (a *AdminService) SaveTemplate(ctx context.Context, t store.PersonalityTemplate) (store.PersonalityTemplate, error) {
	t.Name = strings.TrimSpace(t.Name)
	t.Prompt = strings.TrimSpace(t.Prompt)
	t.IsSystemDefault = false
	if t.ID == DefaultTemplateID {
		return store.PersonalityTemplate{}, ErrDefaultTemplateImmutable
	}
	if t.Name == "" || t.Prompt == "" {
		return store.PersonalityTemplate{}, ErrTemplateInvalid
	}

	ts, err := a.storedTemplates(ctx)
	if err != nil {
		return store.PersonalityTemplate{}, err
	}
	idx := -1
	for i, cur := range ts {
		if cur.ID == t.ID && t.ID != "" {
			idx = i
			continue
		}
		if strings.EqualFold(cur.Name, t.Name) {
			return store.PersonalityTemplate{}, ErrTemplateNameTaken
		}
	}

	switch {
	case t.ID == "":
		t.ID = "template-" + uuid.NewString()
		ts = append(ts, t)
	case idx < 0:
		return store.PersonalityTemplate{}, ErrTemplateNotFound
	default:
		ts[idx] = t
	}
	if err := a.repo.SaveTemplates(ctx, ts); err != nil {
		return store.PersonalityTemplate{}, err
	}
	return t, nil
}

func (a *AdminService) DeleteTemplate(ctx context.Context, id string) error {
	if id == DefaultTemplateID {
		return ErrDefaultTemplateImmutable
	}
	ts, err := a.storedTemplates(ctx)
	if err != nil {
		return err
	}
	kept := make([]store.PersonalityTemplate, 0, len(ts))
	for _, t := range ts {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(ts) {
		return ErrTemplateNotFound
	}
	return a.repo.SaveTemplates(ctx, kept)
}

// ApplyTemplate makes the template's prompt the active instruction. Applying the default clears the
// override.
func (a *AdminService) ApplyTemplate(ctx context.Context, id string) error {
	if id == DefaultTemplateID {
		return a.ClearInstruction(ctx)
	}
	ts, err := a.storedTemplates(ctx)
	if err != nil {
		return err
	}
	for _, t := range ts {
		if t.ID == id {
			return a.SaveInstruction(ctx, t.Prompt)
		}
	}
	return ErrTemplateNotFound
}

// ImportTemplates reads a YAML list of templates. Entries whose name already exists replace that
// template's prompt.
func (a *AdminService) ImportTemplates(ctx context.Context, r io.Reader) (int, error) {
	var entries []store.PersonalityTemplate
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to decode templates: %w", err)
	}

	existing, err := a.storedTemplates(ctx)
	if err != nil {
		return 0, err
	}
	byName := make(map[string]string, len(existing))
	for _, t := range existing {
		byName[strings.ToLower(t.Name)] = t.ID
	}

	imported := 0
	for _, e := range entries {
		e.ID = byName[strings.ToLower(strings.TrimSpace(e.Name))]
		saved, err := a.SaveTemplate(ctx, e)
		if err != nil {
			return imported, fmt.Errorf("template %q: %w", e.Name, err)
		}
		byName[strings.ToLower(saved.Name)] = saved.ID
		imported++
	}
	return imported, nil
}

// Announcements

// PublishAnnouncement replaces the announcement and resets every user's dismissals so it shows again.
func (a *AdminService) PublishAnnouncement(ctx context.Context, message string) (store.GlobalAnnouncement, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return store.GlobalAnnouncement{}, ErrEmptyAnnouncement
	}
	ann := store.GlobalAnnouncement{
		ID:        "ann-" + uuid.NewString(),
		Message:   message,
		Timestamp: a.now(),
	}
	if err := a.repo.SaveAnnouncement(ctx, ann); err != nil {
		return store.GlobalAnnouncement{}, err
	}
	cleared, err := a.repo.ClearAllDismissals(ctx)
	if err != nil {
		return store.GlobalAnnouncement{}, err
	}
	log.Info().Str("announcement_id", ann.ID).Int("dismissals_cleared", cleared).Msg("announcement published")
	a.listener.AnnouncementChanged(ctx)
	return ann, nil
}

func (a *AdminService) CurrentAnnouncement(ctx context.Context) (*store.GlobalAnnouncement, error) {
	return a.repo.Announcement(ctx)
}

// Users lists registered accounts without their password hashes.
func (a *AdminService) Users(ctx context.Context) ([]store.User, error) {
	creds, err := a.repo.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]store.User, 0, len(creds))
	for _, c := range creds {
		users = append(users, store.User{
			ID:       c.ID,
			Username: c.Username,
			Email:    c.Email,
			IsAdmin:  a.adminEmail != "" && c.ID == a.adminEmail,
		})
	}
	return users, nil
}
