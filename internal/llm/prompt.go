package llm

import (
	"fmt"
	"strings"

	"github.com/chadiek/interview-coach/internal/interview"
)

var practiceStyles = map[string]string{
	"Mock Interview":        "Run a realistic job interview. Ask one question at a time and press for concrete examples.",
	"TopicWise Preparation": "Hold a focused discussion on the topic. Challenge the candidate's reasoning and ask them to explain trade-offs.",
	"Ques- Answer Practice": "Ask common interview questions one at a time and give a one-sentence tip before the next question.",
	"English Practice":      "Hold a friendly conversation. Gently correct grammar or word choice, then keep the conversation going.",
}

// SystemPrompt builds the interviewer persona for a session.
func SystemPrompt(c interview.Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a voice interviewer conducting a %s session about %s.", orDefault(c.Interviewer, "the interviewer"), orDefault(c.PracticeOption, "practice"), orDefault(c.Topic, "the candidate's chosen topic"))
	if c.RequesterName != "" {
		fmt.Fprintf(&b, " The candidate's name is %s.", c.RequesterName)
	}
	b.WriteString(" ")
	if style, ok := practiceStyles[c.PracticeOption]; ok {
		b.WriteString(style)
	} else {
		b.WriteString(practiceStyles["Mock Interview"])
	}
	b.WriteString(" Your replies are spoken aloud: keep them to two or three short sentences, no lists, no markdown.")
	return b.String()
}

// GreetingInstruction asks for the opening line when there is no history yet.
func GreetingInstruction(c interview.Context) string {
	return fmt.Sprintf("Greet the candidate, introduce yourself as %s, say that today's %s is about %s, and ask them to introduce themselves.",
		orDefault(c.Interviewer, "the interviewer"), orDefault(c.PracticeOption, "interview"), orDefault(c.Topic, "their chosen topic"))
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
