// internal/knowledge/topics.go
package knowledge

// Topic is a static knowledge-base entry: trigger phrases plus a canned
// answer. Topics are registered in a fixed slice so tie-breaks are
// deterministic (earliest registered wins).
type Topic struct {
	ID       string
	Triggers []string
	Answer   string
}

// Topics returns the full topic table in registration order.
func Topics() []Topic {
	return topics
}

var topics = []Topic{
	{
		ID:       "financing",
		Triggers: []string{"finance", "financing", "loan", "installment", "payment plan", "emi", "down payment"},
		Answer:   "We offer flexible financing options with 20-30% down payment and up to 5 years installment plans. Interest rates start from 12% per annum.",
	},
	{
		ID:       "warranty",
		Triggers: []string{"warranty", "guarantee", "coverage", "protection"},
		Answer:   "All our cars come with a 3-month dealer warranty covering engine and transmission. Extended warranty packages available for up to 2 years.",
	},
	{
		ID:       "exchange",
		Triggers: []string{"exchange", "trade-in", "trade in", "old car", "swap"},
		Answer:   "We accept car exchange! Bring your old car and we'll evaluate it for the best exchange value. We handle all documentation.",
	},
	{
		ID:       "service",
		Triggers: []string{"service", "maintenance", "repair", "fix", "mechanic"},
		Answer:   "Our service center offers: Regular maintenance, Oil changes, Brake services, AC repair, Engine diagnostics, Body work and painting.",
	},
	{
		ID:       "inspection",
		Triggers: []string{"inspection", "inspect", "check", "evaluate", "condition"},
		Answer:   "Free pre-purchase inspection available for all cars. Our certified technicians check 150+ points before delivery.",
	},
	{
		ID:       "delivery",
		Triggers: []string{"delivery", "deliver", "shipping", "transport"},
		Answer:   "Free home delivery within city limits. For outstation delivery, charges apply based on distance.",
	},
	{
		ID:       "documentation",
		Triggers: []string{"documents", "documentation", "registration", "transfer", "paperwork", "token tax"},
		Answer:   "We handle all documentation including: Registration transfer, Token tax, Insurance, Number plate transfer. Processing time: 7-14 days.",
	},
	{
		ID:       "hours",
		Triggers: []string{"hours", "timing", "timings", "open", "close", "schedule"},
		Answer:   "We're open Monday to Saturday: 10:00 AM - 8:00 PM, Sunday: 11:00 AM - 6:00 PM. 24/7 support available via phone.",
	},
}
