package emails

import (
	"fmt"
	"strings"
	"time"
)

const (
	themePrimary   = "#1E3A5F"
	themeTextMain  = "#1F2937"
	themeTextMuted = "#6B7280"
	themeBgBody    = "#F3F4F6"
	themeWhite     = "#FFFFFF"
)

// EmailLayout wraps content in the brokerage's HTML email shell. brand is shown in the header and footer.
func EmailLayout(brand, contentHTML string) string {
	year := time.Now().Year()
	brand = EscapeHTML(brand)
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>%s</title>
  <style>
    body { margin: 0; padding: 0; width: 100%% !important; background-color: %s; -webkit-font-smoothing: antialiased; }
    table { border-collapse: collapse; }
    body, td, p, a, li { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; color: %s; }
    .content-body p { margin: 0 0 20px 0; font-size: 16px; line-height: 1.6; color: #374151; }
    .content-body h1 { color: #111827; font-size: 22px; margin-top: 0; margin-bottom: 20px; font-weight: 700; }
    .content-body a { color: %s; font-weight: 600; text-decoration: none; }
    .lead-table td { padding: 6px 0; font-size: 15px; vertical-align: top; }
    .lead-label { color: %s; width: 110px; }
    .cta-button { display: inline-block; background-color: %s; color: #ffffff !important; padding: 12px 28px; text-decoration: none !important; border-radius: 6px; font-weight: 600; font-size: 15px; }
    .footer-text { color: %s; font-size: 13px; line-height: 1.5; }
    @media only screen and (max-width: 600px) { .main-container { width: 100%% !important; } .mobile-p { padding-left: 20px !important; padding-right: 20px !important; } }
  </style>
</head>
<body style="margin: 0; padding: 0; background-color: %s;">
  <table role="presentation" width="100%%" border="0" cellspacing="0" cellpadding="0" style="background-color: %s;">
    <tr>
      <td align="center" style="padding: 40px 0;">
        <table class="main-container" role="presentation" width="600" border="0" cellspacing="0" cellpadding="0" style="width: 600px; background-color: %s; border-radius: 8px; overflow: hidden;">
          <tr>
            <td align="center" style="padding: 36px 0 24px 0; font-size: 20px; font-weight: 700; color: %s;">%s</td>
          </tr>
          <tr>
            <td class="content-body mobile-p" style="padding: 0 48px 30px 48px;">%s</td>
          </tr>
          <tr>
            <td class="mobile-p" align="center" style="padding: 24px 48px 32px 48px; border-top: 1px solid #E5E7EB;">
              <p class="footer-text" style="margin: 0;">© %d %s. Sent by your listings back office.</p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`,
		brand, themeBgBody, themeTextMain, themePrimary, themeTextMuted, themePrimary, themeTextMuted,
		themeBgBody, themeBgBody, themeWhite, themePrimary, brand, contentHTML, year, brand)
}

// EscapeHTML escapes HTML specials for safe interpolation.
func EscapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}
