package warmup

var subjects = []string{
	"Quick update",
	"Following up",
	"Checking in",
	"Notes from {{ sender_name }}",
	"Weekly summary",
	"Status update",
	"A quick question",
	"Thanks for your time",
}

var bodies = []string{
	`<p>Hi {{ recipient_name | default: "there" }},</p>` +
		`<p>Just a quick note to keep you posted. Nothing needed from your side.</p>` +
		`<p>Thanks,<br>{{ sender_name }}</p>`,
	`<p>Hello {{ recipient_name | default: "there" }},</p>` +
		`<p>Following up on our last conversation. Let me know if you have any questions.</p>` +
		`<p>Best regards,<br>{{ sender_name }}</p>`,
	`<p>Hi,</p>` +
		`<p>Sharing a short update from {{ sender_domain }}. If this landed in spam, ` +
		`please move it to your inbox and add {{ sender }} to your contacts.</p>` +
		`<p>Cheers,<br>{{ sender_name }}</p>`,
}
