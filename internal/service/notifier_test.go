package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

func TestMailNotifier(t *testing.T) {
	n, err := NewMailNotifier(MailConfig{Host: "smtp.example.com", Port: 587, From: "noreply@example.com"})
	require.NoError(t, err)

	var sent []*gomail.Message
	n.send = func(m ...*gomail.Message) error {
		sent = append(sent, m...)
		return nil
	}

	require.NoError(t, n.SendCode(context.Background(), "t@ex.com", "123456"))
	require.Len(t, sent, 1)

	assert.Equal(t, []string{"t@ex.com"}, sent[0].GetHeader("To"))
	assert.Equal(t, []string{"Your password reset code"}, sent[0].GetHeader("Subject"))

	var buf bytes.Buffer
	_, err = sent[0].WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "123456")
}

func TestMailNotifierErrors(t *testing.T) {
	_, err := NewMailNotifier(MailConfig{})
	assert.Error(t, err)

	n, err := NewMailNotifier(MailConfig{Host: "smtp.example.com", From: "noreply@example.com"})
	require.NoError(t, err)
	n.send = func(...*gomail.Message) error { return errors.New("connection refused") }

	assert.Error(t, n.SendCode(context.Background(), "noreply@example.com", "123456"))
	assert.Error(t, n.SendCode(context.Background(), "t@ex.com", "123456"))
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, LogNotifier{}.SendCode(context.Background(), "t@ex.com", "123456"))
}
