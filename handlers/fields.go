package handlers

import (
	"bufio"
	"context"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/bsaid97/go-boundary-prep/utils"
)

// ReadReservedWords loads the newline-delimited list of unsupported field
// names. A file that cannot be read is reported and an empty set returned,
// so field names simply go unchecked.
func ReadReservedWords(ctx context.Context, path string) map[string]struct{} {
	logger := utils.LoggerFromContext(ctx)
	words := make(map[string]struct{})

	logger.Info("Reading in reserved keywords.")
	f, err := os.Open(path)
	if err != nil {
		logger.Warn("Unable to read list of reserved keywords, field names cannot be checked!")
		logger.Info("Tried to read words from file:", "path", path, "err", err)
		return words
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if w := strings.TrimSpace(scanner.Text()); w != "" {
			words[strings.ToUpper(w)] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("Reserved keyword list was only partially read.", "path", path, "err", err)
	}
	return words
}

// CheckFields returns the fields that need a new name, keyed by the
// upper-cased current name. Reserved names get a trailing underscore; names
// starting with a digit or an underscore get a "t" prefix, which takes
// precedence over the reserved-name fix.
func CheckFields(ctx context.Context, fieldNames []string, reserved map[string]struct{}) map[string]string {
	logger := utils.LoggerFromContext(ctx)
	changed := make(map[string]string)

	upper := make([]string, len(fieldNames))
	for i, name := range fieldNames {
		upper[i] = strings.ToUpper(name)
	}
	logger.Infof("Checking feature class field names: %v", upper)

	for _, name := range upper {
		if _, ok := reserved[name]; ok {
			changed[name] = name + "_"
			logger.Infof("Field %s is a reserved name, adding an underscore.", name)
		}
	}

	// Shapefiles written by libraries that skip name validation end up here.
	logger.Info("Checking for edge cases: digit or underscore starting a field.")
	for _, name := range upper {
		if name == "" {
			continue
		}
		switch first := rune(name[0]); {
		case unicode.IsDigit(first):
			changed[name] = "t_" + name
		case first == '_':
			changed[name] = "t" + name
		}
	}
	return changed
}

// ApplyRenames renames the fields of layer. Names over the DBF limit are
// truncated with a warning; a rename onto an existing field is an error.
func ApplyRenames(ctx context.Context, layer *utils.Layer, renames map[string]string) error {
	logger := utils.LoggerFromContext(ctx)
	if len(renames) == 0 {
		return nil
	}

	logger.Info("Renaming fields.")
	from := make([]string, 0, len(renames))
	for name := range renames {
		from = append(from, name)
	}
	sort.Strings(from)

	for _, name := range from {
		to := renames[name]
		if len(to) > utils.MaxFieldNameLength {
			logger.Warnf("New name %s for field %s is longer than %d characters, truncating to %s.",
				to, name, utils.MaxFieldNameLength, to[:utils.MaxFieldNameLength])
			to = to[:utils.MaxFieldNameLength]
		}
		if err := layer.RenameField(name, to); err != nil {
			return err
		}
		logger.Debug("renamed field", "from", name, "to", to)
	}
	return nil
}
