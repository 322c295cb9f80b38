package classifier

import (
	"strings"
	"unicode"
)

// Department is the dispatch unit an incident is routed to.
type Department string

const (
	Fire     Department = "Fire"
	Medical  Department = "Medical"
	Police   Department = "Police"
	Traffic  Department = "Traffic"
	Crime    Department = "Crime"
	Disaster Department = "Disaster"
	Other    Department = "Other"
)

// Departments in prompt order.
var Departments = []Department{Fire, Medical, Police, Traffic, Crime, Disaster, Other}

var departmentScopes = map[Department]string{
	Fire:     "Fire emergencies, building fires, forest fires, gas leaks, explosions",
	Medical:  "Medical emergencies, accidents with injuries, health crises, ambulance needed",
	Police:   "Criminal activities, theft, violence, domestic disputes, suspicious activities",
	Traffic:  "Road accidents, traffic violations, vehicle incidents, road blockages",
	Crime:    "Serious criminal activities, ongoing crimes, security threats",
	Disaster: "Natural disasters, floods, earthquakes, severe weather emergencies",
	Other:    "Non-emergency issues, general complaints, unclear situations",
}

func (d Department) Valid() bool {
	_, ok := departmentScopes[d]
	return ok
}

// ParseDepartment maps a model reply onto a Department. Non-letters are
// stripped, then an exact case-insensitive match is tried, then containment
// in either direction.
func ParseDepartment(reply string) (Department, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, reply)))
	if cleaned == "" {
		return "", false
	}

	for _, d := range Departments {
		if strings.ToLower(string(d)) == cleaned {
			return d, true
		}
	}
	for _, d := range Departments {
		name := strings.ToLower(string(d))
		if strings.Contains(cleaned, name) || strings.Contains(name, cleaned) {
			return d, true
		}
	}
	return "", false
}

func departmentList() string {
	var b strings.Builder
	for i, d := range Departments {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(string(d))
		b.WriteString(": ")
		b.WriteString(departmentScopes[d])
	}
	return b.String()
}
