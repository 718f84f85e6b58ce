package sending

import (
	"github.com/ignite/mailcore/internal/pkg/tmpl"
	"github.com/ignite/mailcore/internal/service/content"
)

const (
	textFooter = "\n\n---\nYou received this email from {{ domain }}. To unsubscribe, visit: {{ url }}\n"
	htmlFooter = `<p style="font-size:12px;color:#666;margin-top:24px">You received this email from {{ domain }}. ` +
		`<a href="{{ url }}">Unsubscribe</a></p>`
)

// withFooter appends an unsubscribe footer unless body already mentions
// unsubscribing.
func withFooter(r *tmpl.Renderer, body string, html bool, domainName, url string) (string, error) {
	if content.HasUnsubscribeMention(body) {
		return body, nil
	}
	key, src := "footer:text", textFooter
	if html {
		key, src = "footer:html", htmlFooter
	}
	footer, err := r.Render(key, src, map[string]interface{}{"domain": domainName, "url": url})
	if err != nil {
		return body, err
	}
	return body + footer, nil
}
