package agent

import (
	"fmt"
	"strings"
)

// Difficulty selects the persona the remote agent plays.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Difficulties lists every valid value, easiest first.
var Difficulties = []Difficulty{Easy, Medium, Hard}

var instructions = map[Difficulty]string{
	Easy: `You are a friendly potential customer who is interested in the product being sold.
You ask simple questions and are generally receptive to the sales pitch.
You have a straightforward objection that can be easily overcome.
Be warm, encouraging, and help the salesperson practice basic sales techniques.`,

	Medium: `You are a potential customer who is somewhat interested but has reservations.
You ask probing questions about pricing, features, and competitors.
You have 2-3 objections that require thoughtful responses to overcome.
Be professional but skeptical, requiring the salesperson to demonstrate value.`,

	Hard: `You are a tough, experienced buyer who has seen many sales pitches.
You are skeptical, ask challenging questions, and push back on claims.
You have multiple strong objections and may try to end the conversation early.
You require excellent rapport building, deep product knowledge, and skilled objection handling.
Only agree to next steps if truly impressed by the salesperson's approach.`,
}

// ParseDifficulty accepts any casing of easy, medium or hard.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("unknown difficulty %q (want easy, medium or hard)", s)
	}
	return d, nil
}

func (d Difficulty) Valid() bool {
	_, ok := instructions[d]
	return ok
}

// Instructions returns the behavioral prompt sent to the reasoning model.
func (d Difficulty) Instructions() string {
	return instructions[d]
}

func (d Difficulty) String() string {
	return string(d)
}
