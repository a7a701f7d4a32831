// Package feature implements the conversation topics layered on top of the
// turn pipeline: medication reminders and the word-of-day exercise. A topic
// changes which prompt context and follow-up templates apply; it is not a
// separate state machine.
package feature

import (
	"fmt"
	"strings"
	"time"
)

// MedicationResponse classifies the user's answer to a medication nudge.
type MedicationResponse int

const (
	MedicationUnclear MedicationResponse = iota
	MedicationTaken
	MedicationNotEaten
)

// Medication handles the medication-reminder topic.
type Medication struct{}

// NewMedication creates the handler.
func NewMedication() *Medication {
	return &Medication{}
}

// ReminderMessage builds the nudge text for a due medication, phrased for
// the current part of day.
func (m *Medication) ReminderMessage(medName string, now time.Time) string {
	meal := "dinner"
	switch hour := now.Hour(); {
	case hour < 12:
		meal = "breakfast"
	case hour < 17:
		meal = "lunch"
	}
	return fmt.Sprintf("I noticed it's time for your %s. Usually we take it around this time. Have you had %s yet?", medName, meal)
}

// Classify buckets the user's reply to a reminder.
func (m *Medication) Classify(userText string) MedicationResponse {
	text := strings.ToLower(userText)
	// Negations first: "not yet" contains neither a bare yes nor no token
	// reliably, and "haven't" outranks an embedded "have".
	switch {
	case containsAny(text, "not yet", "haven't", "didn't", "no"):
		return MedicationNotEaten
	case containsAny(text, "yes", "taken", "already", "done"):
		return MedicationTaken
	default:
		return MedicationUnclear
	}
}

// FollowUp builds the reply for a classified response. The topic stays
// active until the medication is confirmed taken.
func (m *Medication) FollowUp(resp MedicationResponse, medName string) (text string, resolved bool) {
	switch resp {
	case MedicationTaken:
		return "Great! I'm glad you remembered. How are you feeling today?", true
	case MedicationNotEaten:
		return fmt.Sprintf("Okay, let's get some food first, then the %s. I'll remind you again in 10 minutes.", medName), false
	default:
		return fmt.Sprintf("Just let me know when you're ready, and I'll remind you about the %s.", medName), false
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
