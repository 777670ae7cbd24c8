package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// bindFlags binds every known key that has a flag of the same name. The
// --no-reconcile flag is the negation of the reconcile key.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, key := range []string{
		KeyOut, KeyRetrySummary, KeyEnvironment, KeyFormat, KeyTheme, KeyNoColor,
		KeyHTML, KeyMetricsFile, KeyLogLevel, KeyLogFormat,
	} {
		if f := fs.Lookup(key); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("binding flag %s: %w", key, err)
			}
		}
	}
	if f := fs.Lookup("no-reconcile"); f != nil && f.Changed && f.Value.String() == "true" {
		v.Set(KeyReconcile, false)
	}
	return nil
}

// findFile returns the first FileName found in dirs.
func findFile(dirs []string) string {
	if dirs == nil {
		dirs = []string{"."}
		if home, err := os.UserConfigDir(); err == nil && home != "" && home != "/" {
			dirs = append(dirs, filepath.Join(home, "verdict"))
		}
	}
	for _, d := range dirs {
		p := filepath.Join(d, FileName)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p
		}
	}
	return ""
}

// noColorEnv honours the NO_COLOR convention: any non-empty value disables color.
func noColorEnv() bool {
	return os.Getenv("NO_COLOR") != ""
}
