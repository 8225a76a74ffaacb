package llm

// ChatModel describes one selectable model in the catalogue.
type ChatModel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Provider    string `json:"provider"`
	Description string `json:"description"`
}

// DefaultModel is used when no chain is configured for an entry point.
const DefaultModel = "moonshot/kimi-k2.5"

// Catalogue lists the models the service knows how to invoke. The "-thinking"
// suffix convention maps a catalogue id to the thinking toggle on invocation
// options rather than a distinct upstream model.
var Catalogue = []ChatModel{
	{
		ID:          "moonshot/kimi-k2.5",
		Name:        "Kimi K2.5",
		Provider:    "moonshot",
		Description: "Latest Kimi model with enhanced capabilities",
	},
	{
		ID:          "moonshot/kimi-k2-0905-preview",
		Name:        "Kimi K2 (0905)",
		Provider:    "moonshot",
		Description: "Kimi K2 model with strong reasoning",
	},
	{
		ID:          "moonshot/kimi-k2-turbo-preview",
		Name:        "Kimi K2 Turbo Preview",
		Provider:    "moonshot",
		Description: "Turbo preview (fast K2)",
	},
	{
		ID:          "google/gemini-2.5-flash",
		Name:        "Gemini 2.5 Flash",
		Provider:    "google",
		Description: "Fast and capable Google model",
	},
	{
		ID:          "openai/gpt-4o",
		Name:        "GPT-4o",
		Provider:    "openai",
		Description: "OpenAI's flagship multimodal model",
	},
	{
		ID:          "anthropic/claude-sonnet-4-5-20250929",
		Name:        "Claude Sonnet 4.5",
		Provider:    "anthropic",
		Description: "Best balance of speed, intelligence, and cost",
	},
	{
		ID:          "anthropic/claude-haiku-4-5-20251001",
		Name:        "Claude Haiku 4.5",
		Provider:    "anthropic",
		Description: "Fast and affordable, great for everyday tasks",
	},
}

// LookupModel finds a catalogue entry by id.
func LookupModel(id string) (ChatModel, bool) {
	for _, m := range Catalogue {
		if m.ID == id {
			return m, true
		}
	}
	return ChatModel{}, false
}

// ModelsByProvider groups the catalogue for listing endpoints.
func ModelsByProvider() map[string][]ChatModel {
	out := make(map[string][]ChatModel)
	for _, m := range Catalogue {
		out[m.Provider] = append(out[m.Provider], m)
	}
	return out
}
