package shared

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateSyncConfig checks everything a sync run needs: both sets of credentials, at least one source URI and sane HTTP settings.
func ValidateSyncConfig(c *Config) error {
	return validateSections(
		section{"credentials.spotify", c.Credentials.Spotify},
		section{"credentials.plex", c.Credentials.Plex},
		section{"sync", c.Sync},
		section{"http", c.HTTP},
		section{"log", c.Log},
	)
}

// ValidateCatalogConfig checks the settings needed to read from the catalog only.
func ValidateCatalogConfig(c *Config) error {
	return validateSections(
		section{"credentials.spotify", c.Credentials.Spotify},
		section{"http", c.HTTP},
	)
}

// ValidateLibraryConfig checks the settings needed to talk to the Plex server only.
func ValidateLibraryConfig(c *Config) error {
	return validateSections(
		section{"credentials.plex", c.Credentials.Plex},
		section{"http", c.HTTP},
	)
}

// ValidateServerConfig checks serve mode settings on top of [ValidateSyncConfig].
func ValidateServerConfig(c *Config) error {
	if err := ValidateSyncConfig(c); err != nil {
		return err
	}
	return validateSections(section{"server", c.Server})
}

type section struct {
	name  string
	value any
}

func validateSections(sections ...section) error {
	var problems []string
	for _, s := range sections {
		err := validate.Struct(s.value)
		if err == nil {
			continue
		}

		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s.%s: failed %q", s.name, fieldPath(fe), fe.Tag()))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
}

// fieldPath drops the leading struct name from the validator namespace ("PlexConfig.url" -> "url").
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
