package cli

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
)

// prompter asks for configuration values. Tests replace it.
type prompter interface {
	Input(message, defaultValue string, required bool, validate survey.Validator) (string, error)
	Secret(message string) (string, error)
	Confirm(message string, defaultValue bool) (bool, error)
}

type surveyPrompter struct{}

func (surveyPrompter) Input(message, defaultValue string, required bool, validate survey.Validator) (string, error) {
	content := ""
	prompt := &survey.Input{
		Message: message,
		Default: defaultValue,
	}

	var opts []survey.AskOpt
	if required {
		opts = append(opts, survey.WithValidator(survey.Required))
	}
	if validate != nil {
		opts = append(opts, survey.WithValidator(validate))
	}
	if err := survey.AskOne(prompt, &content, opts...); err != nil {
		return "", err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		content = defaultValue
	}
	return content, nil
}

func (surveyPrompter) Secret(message string) (string, error) {
	content := ""
	prompt := &survey.Password{
		Message: message,
	}
	if err := survey.AskOne(prompt, &content, survey.WithValidator(survey.Required)); err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func (surveyPrompter) Confirm(message string, defaultValue bool) (bool, error) {
	answer := defaultValue
	prompt := &survey.Confirm{
		Message: message,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &answer); err != nil {
		return false, err
	}
	return answer, nil
}

func validateEndpoint(val interface{}) error {
	str, ok := val.(string)
	if !ok {
		return errors.New("invalid input")
	}
	str = strings.TrimSpace(str)
	if str == "" {
		return nil
	}

	u, err := url.Parse(str)
	if err != nil || u.Host == "" {
		return errors.New("must be an absolute URL, e.g. https://tenant.logto.app")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("scheme must be http or https")
	}
	return nil
}

func validateDuration(val interface{}) error {
	str, ok := val.(string)
	if !ok {
		return errors.New("invalid input")
	}
	str = strings.TrimSpace(str)
	if str == "" {
		return nil
	}

	d, err := time.ParseDuration(str)
	if err != nil {
		return errors.New("must be a duration such as 30s or 1m")
	}
	if d <= 0 {
		return errors.New("must be positive")
	}
	return nil
}
