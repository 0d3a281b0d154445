package email

// PreviewData holds sample values for every template, keyed by template
// name, so templates can be rendered without a real account.
var PreviewData = map[Template]map[string]string{
	TemplateWelcome: {
		"FullName": "Grace Hopper",
		"Username": "grace.hopper",
	},
}
