// Package chat answers assistant messages from a keyword table. Lookups read
// the merged catalog and never change it.
package chat

import (
	"fmt"
	"sort"
	"strings"

	"medinearby/internal/calculator"
	"medinearby/internal/models"
)

const (
	emergencyReply = "EMERGENCY SERVICES:\nAmbulance: 911\nPoison Control: 1-800-222-1222\n\nFor immediate danger, please call 911 now!"
	bookingReply   = "To book an appointment:\n1. Choose a doctor from search results\n2. I'll show available slots\n3. Confirm your preferred time\n\nWhich specialist would you like to see?"
	symptomReply   = "I can help with basic symptom guidance, but please consult a doctor for proper diagnosis.\n\nCommon concerns:\n- Fever: see a General Physician\n- Chest pain: see a Cardiologist (emergency if severe)\n- Skin issues: see a Dermatologist\n\nWhat symptoms are you experiencing?"
	hoursReply     = "Most clinics operate:\nMon-Fri: 9 AM - 6 PM\nSat: 10 AM - 4 PM\nSun: Closed (emergency only)\n\nWant to find a specific clinic's hours?"
	helpReply      = "I can assist you with:\n\n- Find doctors by specialty\n- Book appointments\n- Emergency contacts\n- Locate pharmacies\n- Check ratings & reviews\n- Symptom guidance\n\nWhat do you need help with?"

	// Greeting is the assistant's first message.
	Greeting = "Hi! I'm MediBot. I can help you:\n- Find nearby doctors\n- Book appointments\n- Get emergency contacts\n- Check symptoms"
)

type rule struct {
	keywords []string
	reply    string
}

var leadingRules = []rule{
	{keywords: []string{"emergency", "urgent", "911"}, reply: emergencyReply},
	{keywords: []string{"book", "appointment", "schedule"}, reply: bookingReply},
	{keywords: []string{"symptom", "pain", "fever", "sick"}, reply: symptomReply},
	{keywords: []string{"hours", "open", "timing"}, reply: hoursReply},
}

type specialty struct {
	keyword     string
	description string
}

var specialties = []specialty{
	{"cardiologist", "heart and cardiovascular"},
	{"dermatologist", "skin conditions"},
	{"pediatrician", "children's health"},
	{"orthopedic", "bones and joints"},
	{"neurologist", "brain and nervous system"},
	{"psychiatrist", "mental health"},
	{"dentist", "dental and oral care"},
	{"ophthalmologist", "eye care"},
	{"gynecologist", "women's health"},
}

var (
	pharmacyKeywords = []string{"pharmacy", "medicine", "drug"}
	ratingKeywords   = []string{"rating", "review", "best"}
)

// Responder answers one message at a time.
type Responder struct {
	engine *calculator.Engine
}

func NewResponder(engine *calculator.Engine) *Responder {
	return &Responder{engine: engine}
}

// Respond picks the first matching rule for message. Specialty, pharmacy and
// rating answers list up to three providers from catalog.
func (r *Responder) Respond(message string, catalog []models.Provider, user *models.Coordinate) string {
	q := strings.ToLower(strings.TrimSpace(message))
	if q == "" {
		return helpReply
	}

	for _, rl := range leadingRules {
		if containsAny(q, rl.keywords) {
			return rl.reply
		}
	}

	for _, s := range specialties {
		if !strings.Contains(q, s.keyword) {
			continue
		}
		matched := filter(catalog, func(p models.Provider) bool {
			return strings.Contains(strings.ToLower(p.Specialty), s.keyword) ||
				strings.Contains(strings.ToLower(p.Category), s.keyword)
		})
		if len(matched) == 0 {
			return fmt.Sprintf("No %ss found nearby. Try:\n- Expanding search radius\n- Checking nearby cities\n- Trying 'general physician'", s.keyword)
		}
		return fmt.Sprintf("Found %d %ss (%s):\n\n%s\n\nWould you like to book an appointment?",
			len(matched), s.keyword, s.description, r.list(matched, user))
	}

	if containsAny(q, pharmacyKeywords) {
		matched := filter(catalog, func(p models.Provider) bool {
			return p.Category == models.CategoryPharmacy || p.Category == models.CategoryMedicalStores
		})
		if len(matched) == 0 {
			return "No pharmacies are listed nearby right now."
		}
		return fmt.Sprintf("Pharmacies nearby:\n\n%s\n\nNeed directions to any?", r.list(matched, user))
	}

	if containsAny(q, ratingKeywords) {
		rated := filter(catalog, func(p models.Provider) bool { return p.Rating != nil })
		if len(rated) == 0 {
			return "No rated doctors are listed yet."
		}
		sort.SliceStable(rated, func(i, j int) bool { return *rated[i].Rating > *rated[j].Rating })
		return fmt.Sprintf("Top rated:\n\n%s\n\nWant details on any doctor?", r.list(rated, user))
	}

	return helpReply
}

func (r *Responder) list(providers []models.Provider, user *models.Coordinate) string {
	if len(providers) > 3 {
		providers = providers[:3]
	}
	lines := make([]string, 0, len(providers))
	for i, p := range providers {
		name := p.Name
		if name == "" {
			name = "Unknown"
		}
		rating := "-"
		if p.Rating != nil {
			rating = fmt.Sprintf("%.1f", *p.Rating)
		}
		where := p.Address
		if where == "" {
			where = p.Clinic
		}
		line := fmt.Sprintf("%d. %s\n   %s/5 | %s", i+1, name, rating, p.Category)
		if where != "" {
			line += "\n   " + where
		}
		if res := (models.RankedResult{Provider: p, Distance: r.engine.Distance(p, user)}); res.Distance != nil {
			if d, ok := res.DisplayDistance(); ok {
				line += fmt.Sprintf(" | %.1f km away", d)
			}
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n\n")
}

func filter(providers []models.Provider, keep func(models.Provider) bool) []models.Provider {
	var out []models.Provider
	for _, p := range providers {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
