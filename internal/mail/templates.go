package mail

// Two mail bodies share one template file: "welcome" goes out on
// registration, "verification" whenever a login needs a fresh check.
const templates = `
{{define "welcome"}}
<html>
  <body>
    <p>Hello {{.user_name}},</p>
    <p>Thank you for joining. Confirm your address to activate your account:</p>
    <p><a href="{{.verification_link}}">Verify my account</a></p>
    <p>The link expires in {{.expiry_minutes}} minutes.</p>
  </body>
</html>
{{end}}

{{define "verification"}}
<html>
  <body>
    <p>Hello {{.user_name}},</p>
    <p>Your account needs to be verified before you can sign in:</p>
    <p><a href="{{.verification_link}}">Verify my account</a></p>
    <p>The link expires in {{.expiry_minutes}} minutes. If this was not
    you, you can ignore this message.</p>
  </body>
</html>
{{end}}
`
