package intake

import (
	"errors"
	"testing"
)

func TestNormalizeBodyPrefersText(t *testing.T) {
	text := "  Total: $5,000\nThanks for the opportunity  "
	got, err := NormalizeBody(text, "<p>ignored html body here</p>", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Total: $5,000\nThanks for the opportunity" {
		t.Fatalf("plain text must be used as sent, got %q", got)
	}
}

func TestNormalizeBodyHTML(t *testing.T) {
	html := `<html><head><style>p { color: red; }</style><script>var total = "$1";</script></head>
<body><p>Total:&nbsp;$17,000</p><p>Payment: Net&nbsp;30 &amp; &quot;on time&quot;</p>
<p>--</p><p>Best regards,</p><div>Sent from my phone</div><p>On Mon, Bob wrote:</p><p>Thanks!</p>
<p>__________</p></body></html>`

	got, err := NormalizeBody("", html, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "Total: $17,000\nPayment: Net 30 & \"on time\""
	if got != want {
		t.Fatalf("unexpected normalized body:\n got: %q\nwant: %q", got, want)
	}
}

func TestNormalizeBodyLineBreaks(t *testing.T) {
	got, err := NormalizeBody("", "RFP_ID: 4<br>VENDOR_ID: 7<br/>Total: $9,000 for everything", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "RFP_ID: 4\nVENDOR_ID: 7\nTotal: $9,000 for everything" {
		t.Fatalf("unexpected body: %q", got)
	}
}

func TestNormalizeBodyTooShort(t *testing.T) {
	tests := []struct {
		name string
		text string
		html string
		min  int
	}{
		{name: "empty", text: "  "},
		{name: "short text", text: "Price is $500"},
		{name: "only boilerplate html", html: "<p>Thanks</p><p>-- </p><p>Sent from my iPhone</p>"},
		{name: "custom minimum", text: "Total: $500 with Net 30", min: 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeBody(tt.text, tt.html, tt.min)
			if !errors.Is(err, ErrBodyTooShort) {
				t.Fatalf("expected ErrBodyTooShort, got %v", err)
			}
			if KindOf(err) != KindValidation {
				t.Fatalf("expected validation kind, got %s", KindOf(err))
			}
		})
	}
}
