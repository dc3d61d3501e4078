package email

import "fmt"

// VerificationEmailHTML returns the HTML body for a verification OTP email.
func VerificationEmailHTML(otp string, appName string, ttlMinutes int) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Confirm your email</title>
</head>
<body style="margin:0;padding:0;font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,Helvetica,Arial,sans-serif;background-color:#f6f4ef;">
<table width="100%%" cellpadding="0" cellspacing="0" style="background-color:#f6f4ef;padding:40px 0;">
<tr><td align="center">
<table width="480" cellpadding="0" cellspacing="0" style="background-color:#ffffff;border-radius:10px;overflow:hidden;box-shadow:0 2px 8px rgba(0,0,0,0.07);">
  <tr><td style="padding:32px 40px 24px;text-align:center;">
    <h1 style="margin:0;font-size:24px;color:#22223b;">Confirm your email</h1>
  </td></tr>
  <tr><td style="padding:0 40px;">
    <p style="margin:0 0 24px;font-size:15px;color:#4a4e69;line-height:1.6;">
      Welcome to <strong>%s</strong>! Enter the code below to confirm your email address and start building your wish list.
    </p>
  </td></tr>
  <tr><td style="padding:0 40px;text-align:center;">
    <div style="display:inline-block;background-color:#eef6f0;border:2px dashed #2a9d8f;border-radius:8px;padding:16px 40px;margin:0 0 24px;">
      <span style="font-family:'Courier New',monospace;font-size:36px;font-weight:bold;letter-spacing:8px;color:#22223b;">%s</span>
    </div>
  </td></tr>
  <tr><td style="padding:0 40px 32px;">
    <p style="margin:0;font-size:13px;color:#9a8c98;line-height:1.5;">
      This code expires in <strong>%d minutes</strong>. If you didn't create an account, you can safely ignore this email.
    </p>
  </td></tr>
  <tr><td style="padding:16px 40px;background-color:#fafaf7;border-top:1px solid #eeece6;">
    <p style="margin:0;font-size:12px;color:#b5a9b0;text-align:center;">
      &copy; %s &mdash; This is an automated message, please do not reply.
    </p>
  </td></tr>
</table>
</td></tr>
</table>
</body>
</html>`, appName, otp, ttlMinutes, appName)
}

// VerificationEmailText returns the plain-text body for a verification OTP email.
func VerificationEmailText(otp string, appName string, ttlMinutes int) string {
	return fmt.Sprintf(`Confirm your email

Welcome to %s! Enter the code below to confirm your email address and start building your wish list.

Your verification code: %s

This code expires in %d minutes. If you didn't create an account, you can safely ignore this email.

- %s`, appName, otp, ttlMinutes, appName)
}
