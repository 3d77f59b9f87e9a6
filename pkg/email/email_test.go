package email

import (
	"strings"
	"testing"
)

func TestSendRejectsInvalidAddress(t *testing.T) {
	err := Send("smtp.example.org", 587, "alerts@example.org", "pw", "Meal Alerts",
		[]string{"good@example.org", "bad-address"}, "subject", "<p>html</p>", "text")
	if err == nil || !strings.Contains(err.Error(), "bad-address") {
		t.Errorf("err = %v, want invalid address rejection", err)
	}
}

func TestBuildMessage(t *testing.T) {
	msg := string(BuildMessage("Meal Alerts", "alerts@example.org",
		[]string{"a@example.org", "b@example.org"},
		"[URGENT] Dinner for C. Le", "<p>late</p>", "late"))

	for _, want := range []string{
		"From: Meal Alerts <alerts@example.org>\r\n",
		"To: a@example.org, b@example.org\r\n",
		"Subject: [URGENT] Dinner for C. Le\r\n",
		"MIME-Version: 1.0\r\n",
		"Content-Type: multipart/alternative;",
		"Content-Type: text/plain; charset=\"utf-8\"",
		"Content-Type: text/html; charset=\"utf-8\"",
		"<p>late</p>",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q", want)
		}
	}
	if !strings.HasSuffix(msg, "--np-meal-alert--\r\n") {
		t.Error("message not terminated with closing boundary")
	}
	if strings.Index(msg, "text/plain") > strings.Index(msg, "text/html") {
		t.Error("plain part must precede html part")
	}
}
