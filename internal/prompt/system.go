package prompt

import "strings"

// System prompt fragments. Context lines are included only when the
// corresponding data is actually present in the user prompt, keeping the
// instruction surface as small as the data allows.
const (
	systemBase = `You are an expert World of Warcraft loot council assistant making fair loot distribution decisions.

Use the guild policy rules as the basis for all decisions.

IMPORTANT CONTEXT:
- "Item Priority: Mainspec" means this item is for the player's primary raid role
- "Item Priority: Offspec" means this item is for an alternate role the player sometimes plays`

	systemWishlistContext = `- "Wishlist Position" indicates how much the player wants this item (lower = more desired)`

	systemIlvlContext = `- "Upgrade size" is measured in item level difference compared to currently equipped gear (higher = better upgrade)`

	systemSessionContext = `- "Items assigned this session" tracks how many items a player has already been awarded in the current loot council session, to prevent funnelling loot to the same players repeatedly`

	systemNotesContext = `- "Custom Note" contains officer-provided notes about specific raiders relevant to loot decisions`

	systemPriorityNoteContext = `- "Guild Priority Note" contains overarching guidelines on how this item should be distributed`

	systemFooter = `
Be concise. Output only the requested format with brief reasoning.`
)

// systemFlags records which optional data the user prompt ended up carrying.
type systemFlags struct {
	wishlistPosition  bool
	ilvlUpgrade       bool
	sessionTracking   bool
	customNotes       bool
	guildPriorityNote bool
}

// systemPrompt assembles the system prompt from the flags.
func systemPrompt(f systemFlags) string {
	parts := []string{systemBase}
	if f.wishlistPosition {
		parts = append(parts, systemWishlistContext)
	}
	if f.ilvlUpgrade {
		parts = append(parts, systemIlvlContext)
	}
	if f.sessionTracking {
		parts = append(parts, systemSessionContext)
	}
	if f.customNotes {
		parts = append(parts, systemNotesContext)
	}
	if f.guildPriorityNote {
		parts = append(parts, systemPriorityNoteContext)
	}
	parts = append(parts, systemFooter)
	return strings.Join(parts, "\n")
}
