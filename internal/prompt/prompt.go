// Package prompt asks the operator for database credentials that no
// configuration source supplied.
package prompt

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/mattn/go-isatty"

	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/config"
)

// ErrNotInteractive is returned when a credential is missing and stdin is
// not a terminal.
var ErrNotInteractive = errors.New("credentials missing and stdin is not a terminal")

// Prompter reads answers from the operator.
type Prompter interface {
	Input(message string) (string, error)
	Password(message string) (string, error)
}

// Survey is a Prompter on a terminal.
type Survey struct {
	In  terminal.FileReader
	Out terminal.FileWriter
	Err *os.File
}

// NewSurvey returns a Survey bound to the process stdio.
func NewSurvey() *Survey {
	return &Survey{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

func (s *Survey) Input(message string) (string, error) {
	var answer string
	err := survey.AskOne(&survey.Input{Message: message}, &answer,
		survey.WithValidator(ValueRequired),
		survey.WithStdio(s.In, s.Out, s.Err),
	)
	return strings.TrimSpace(answer), err
}

func (s *Survey) Password(message string) (string, error) {
	var answer string
	err := survey.AskOne(&survey.Password{Message: message}, &answer,
		survey.WithStdio(s.In, s.Out, s.Err),
	)
	return answer, err
}

// ValueRequired rejects blank answers.
func ValueRequired(val any) error {
	if s, ok := val.(string); ok && strings.TrimSpace(s) == "" {
		return errors.New("value is required")
	}
	return nil
}

// IsInteractive reports whether f is a terminal.
func IsInteractive(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// FillCredentials asks for the user and password of db when they are empty
// and the backend authenticates with them. p may be nil when no terminal
// is attached; a missing user is then an error and a missing password is
// left empty.
func FillCredentials(p Prompter, kind string, db *config.DBConfig) error {
	if db.DSN != "" {
		return nil
	}
	switch kind {
	case "postgres", "mysql", "mssql":
	default:
		return nil
	}

	if db.User == "" {
		if p == nil {
			return fmt.Errorf("storage.db.user: %w", ErrNotInteractive)
		}
		user, err := p.Input(fmt.Sprintf("%s username for %s:", kind, db.Host))
		if err != nil {
			return fmt.Errorf("prompt username: %w", err)
		}
		db.User = user
	}
	if db.Password == "" && p != nil {
		pass, err := p.Password(fmt.Sprintf("password for %s@%s:", db.User, db.Host))
		if err != nil {
			return fmt.Errorf("prompt password: %w", err)
		}
		db.Password = pass
	}
	return nil
}
