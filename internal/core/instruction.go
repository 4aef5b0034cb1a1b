package core

import (
	"fmt"
	"strings"

	"github.com/A7-pro/mikerobot/internal/store"
)

const (
	profileBlockHeader = "معلومات المستخدم الحالية التي يمكنك استخدامها لتخصيص الحوار:\n"
	profileBlockFooter = "استخدم هذه المعلومات بشكل طبيعي ولطيف في ردودك عند الحاجة. إذا لم تكن المعلومة متوفرة، لا تشر إليها.\n---\n"
)

// ProfileBlock renders the populated profile fields, one line each. An empty profile renders as "".
func ProfileBlock(p *store.UserProfile) string {
	if p.Empty() {
		return ""
	}
	var b strings.Builder
	b.WriteString(profileBlockHeader)
	if name := strings.TrimSpace(p.DisplayName); name != "" {
		fmt.Fprintf(&b, "- الاسم الذي يفضله المستخدم: %s\n", name)
	}
	if p.Age > 0 {
		fmt.Fprintf(&b, "- العمر: %d\n", p.Age)
	}
	if nat := strings.TrimSpace(p.Nationality); nat != "" {
		fmt.Fprintf(&b, "- الجنسية: %s\n", nat)
	}
	b.WriteString(profileBlockFooter)
	return b.String()
}

// ComposeInstruction builds the system instruction from its three sources. A non-empty override
// replaces base. The profile block fills the placeholder; an override without a placeholder gets the
// block appended.
func ComposeInstruction(base, override string, profile *store.UserProfile) string {
	block := ProfileBlock(profile)

	body := base
	if strings.TrimSpace(override) != "" {
		body = override
	}

	if strings.Contains(body, ProfilePlaceholder) {
		return strings.ReplaceAll(body, ProfilePlaceholder, block)
	}
	if block == "" {
		return body
	}
	return strings.TrimRight(body, "\n") + "\n\n" + block
}

// BaseInstructionBody is the built-in personality without the placeholder, as shown to admins.
func BaseInstructionBody() string {
	return strings.ReplaceAll(BaseInstruction, ProfilePlaceholder, "")
}
