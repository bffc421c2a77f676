// internal/orchestrator/prompt.go
package orchestrator

import (
	"fmt"
	"strings"

	"dealerdesk/internal/models"
)

const persona = `You are an expert customer support assistant for a car dealership in Pakistan.
Be warm, concise and helpful. Prices are in PKR. If the customer seems ready to buy,
invite them to book a test drive or leave their phone number. Never invent cars that
are not in the inventory list below. If you do not know something, say so and offer
to connect the customer with our staff.`

// promptMaxListings caps the inventory snapshot injected into prompts.
const promptMaxListings = 10

// BuildPrompt assembles the completion prompt from the persona, a
// bounded inventory snapshot, recent history oldest first, the lead
// facts gathered so far and the current message.
func BuildPrompt(catalog []models.CarListing, history []models.Turn, lead models.Lead, message string) string {
	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\n")

	if len(catalog) > 0 {
		b.WriteString("Current inventory:\n")
		for i, c := range catalog {
			if i == promptMaxListings {
				b.WriteString(fmt.Sprintf("...and %d more listings\n", len(catalog)-promptMaxListings))
				break
			}
			b.WriteString(fmt.Sprintf("- %s %s %d, PKR %.0f, %s, %s, %s\n",
				c.Make, c.Model, c.Year, c.Price, c.Mileage, c.FuelType, c.Transmission))
		}
		b.WriteString("\n")
	}

	if facts := leadFacts(lead); facts != "" {
		b.WriteString("What we know about this customer:\n")
		b.WriteString(facts)
		b.WriteString("\n")
	}

	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, turn := range history {
			label := "Customer"
			if turn.Role == models.RoleAssistant {
				label = "Assistant"
			}
			b.WriteString(fmt.Sprintf("%s: %s\n", label, turn.Text))
		}
		b.WriteString("\n")
	}

	b.WriteString("Customer: ")
	b.WriteString(message)
	b.WriteString("\nAssistant:")
	return b.String()
}

func leadFacts(lead models.Lead) string {
	var lines []string
	if lead.Name != "" {
		lines = append(lines, "- Name: "+lead.Name)
	}
	if lead.Phone != "" {
		lines = append(lines, "- Phone: "+lead.Phone)
	}
	if lead.Budget != nil {
		if lead.Budget.IsRange() {
			lines = append(lines, fmt.Sprintf("- Budget: PKR %.0f to %.0f", lead.Budget.Min, lead.Budget.Max))
		} else {
			lines = append(lines, fmt.Sprintf("- Budget: PKR %.0f", lead.Budget.Max))
		}
	}
	if len(lead.Interest) > 0 {
		lines = append(lines, "- Interested in: "+strings.Join(lead.Interest, ", "))
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
