package verify

import (
	"fmt"
	"time"

	"gate-tg-bot/internal/challenge"
)

func displayName(c challenge.Challenge) string {
	if c.SubjectName == "" {
		return "newcomer"
	}
	return c.SubjectName
}

func promptText(c challenge.Challenge) string {
	return fmt.Sprintf(
		"Welcome, %s!\n\nTo confirm you are human, tap the answer to %s within %s.",
		displayName(c), c.Question(), formatWindow(c.Deadline.Sub(c.IssuedAt)),
	)
}

func successText(c challenge.Challenge) string {
	return fmt.Sprintf("%s passed verification. An invitation has been sent privately.", displayName(c))
}

func failureText(c challenge.Challenge) string {
	return fmt.Sprintf("%s answered incorrectly and has been removed.", displayName(c))
}

func timeoutText(c challenge.Challenge) string {
	return fmt.Sprintf("%s did not answer in time and has been removed.", displayName(c))
}

func withdrawnText(c challenge.Challenge) string {
	return fmt.Sprintf("%s left before answering.", displayName(c))
}

func supersededText(c challenge.Challenge) string {
	return fmt.Sprintf("This verification for %s was replaced by a newer one.", displayName(c))
}

func inviteText(link string, ttl time.Duration) string {
	return fmt.Sprintf(
		"You passed verification. Here is your single-use invitation (valid for %s):\n%s",
		formatWindow(ttl), link,
	)
}

func formatWindow(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	return d.Round(time.Second).String()
}
