package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[SubmitFormMessage]              = (*SubmitFormCommand)(nil)
	_ gocmd.Commander[UpsertFormConfigurationMessage] = (*UpsertFormConfigurationCommand)(nil)
	_ gocmd.Commander[DeleteFormConfigurationMessage] = (*DeleteFormConfigurationCommand)(nil)
)
