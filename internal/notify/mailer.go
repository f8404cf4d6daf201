package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"mime"
	"net/smtp"
	"strconv"
	"strings"
)

// MailerConfig はSMTP送信の設定。
// SchoolName はイベントに学校名が無い場合の署名に使う。
type MailerConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	SchoolName string
}

// sendMailFunc はsmtp.SendMailと同じシグネチャ。テストで差し替える。
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer はステータス変更をメールで通知する。
// smtp.SendMailはサーバーが対応していればSTARTTLSを使う。
type Mailer struct {
	config MailerConfig
	tmpl   *template.Template
	send   sendMailFunc
}

const statusMailTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <p>Hello {{if .Name}}{{.Name}}{{else}}there{{end}},</p>
  {{if .Digest}}
  <p><strong>{{.Reference}}</strong> passed the estimated completion date and now have high priority.</p>
  <p>{{.Note}}</p>
  {{else}}
  <p>The status of your {{.KindLabel}} <strong>{{.Reference}}</strong> changed from
     <strong>{{.From}}</strong> to <strong>{{.To}}</strong>.</p>
  {{if .Note}}<p>Note from the school: {{.Note}}</p>{{end}}
  {{end}}
  <p>{{.SchoolName}}</p>
</body>
</html>
`

// NewMailer はMailerを生成する。
func NewMailer(config MailerConfig) (*Mailer, error) {
	if config.Port == 0 {
		config.Port = 587
	}
	tmpl, err := template.New("status").Parse(statusMailTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mail template: %w", err)
	}
	return &Mailer{config: config, tmpl: tmpl, send: smtp.SendMail}, nil
}

// Name はチャネル名を返す。
func (m *Mailer) Name() string { return "email" }

// StatusChanged はイベントをHTMLメールとして送信する。
// 宛先が不明なイベントは送信しない。
func (m *Mailer) StatusChanged(_ context.Context, ev Event) error {
	if ev.Recipient == "" {
		return nil
	}

	body, err := m.render(ev)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("%s update: %s", kindLabel(ev.Kind), ev.To)
	if ev.Kind == KindOverdueDigest {
		subject = fmt.Sprintf("%s: %s", kindLabel(ev.Kind), ev.Reference)
	}
	msg := buildMessage(m.config.From, ev.Recipient, subject, body)

	var auth smtp.Auth
	if m.config.Username != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}
	addr := m.config.Host + ":" + strconv.Itoa(m.config.Port)
	if err := m.send(addr, auth, m.config.From, []string{ev.Recipient}, msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

func (m *Mailer) render(ev Event) (string, error) {
	school := ev.SchoolName
	if school == "" {
		school = m.config.SchoolName
	}

	data := struct {
		Digest     bool
		Name       string
		KindLabel  string
		Reference  string
		From       string
		To         string
		Note       string
		SchoolName string
	}{
		Digest:     ev.Kind == KindOverdueDigest,
		Name:       ev.RecipientName,
		KindLabel:  strings.ToLower(kindLabel(ev.Kind)),
		Reference:  ev.Reference,
		From:       ev.From,
		To:         ev.To,
		Note:       ev.Note,
		SchoolName: school,
	}

	var buf bytes.Buffer
	if err := m.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render mail template: %w", err)
	}
	return buf.String(), nil
}

// buildMessage はRFC 5322形式のメッセージを組み立てる。ヘッダー順は固定。
func buildMessage(from, to, subject, htmlBody string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}

func kindLabel(kind string) string {
	switch kind {
	case KindDocument:
		return "Document request"
	case KindEnrollment:
		return "Enrollment"
	case KindInquiry:
		return "Inquiry"
	case KindStub:
		return "Pickup stub"
	case KindOverdueDigest:
		return "Overdue document requests"
	default:
		return "Record"
	}
}
