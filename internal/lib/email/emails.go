package email

import "context"

// SendWelcomeEmail greets a newly created account.
func (c *Client) SendWelcomeEmail(ctx context.Context, to, fullName, username string) error {
	data := map[string]string{
		"FullName": fullName,
		"Username": username,
	}

	return c.SendEmail(ctx, to, "Your account is ready", TemplateWelcome, data)
}
