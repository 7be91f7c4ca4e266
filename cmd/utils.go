package cmd

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var replacer = strings.NewReplacer(".", "_", "-", "_")

type argType interface {
	string | bool | int | float64 | time.Duration | []string
}

// envName is the variable a flag falls back to when it is not given.
func (b boundEnvVar[T]) envName() string {
	if b.Env != nil {
		return *b.Env
	}
	return strings.ToUpper(replacer.Replace(b.Name))
}

func (b boundEnvVar[T]) short() string {
	if b.Short == nil {
		return ""
	}
	return *b.Short
}

// bindEnvMap registers every entry of m as a persistent flag of cmd whose default is the
// current value of the bound variable, overridden by the environment when set.
func bindEnvMap[T argType](cmd *cobra.Command, m map[*T]boundEnvVar[T]) {
	flags := cmd.PersistentFlags()
	for v, cfg := range m {
		env := cfg.envName()
		desc := fmt.Sprintf("[%s] %s", env, cfg.Description)
		_, fromEnv := os.LookupEnv(env)

		switch p := any(v).(type) {
		case *string:
			def := *p
			if fromEnv {
				def = os.Getenv(env)
			}
			flags.StringVarP(p, cfg.Name, cfg.short(), def, desc)
		case *bool:
			def := *p
			if fromEnv {
				def = viper.GetBool(env)
			}
			flags.BoolVarP(p, cfg.Name, cfg.short(), def, desc)
		case *int:
			def := *p
			flags.CountVarP(p, cfg.Name, cfg.short(), desc)
			_ = flags.Lookup(cfg.Name).Value.Set(strconv.Itoa(def))
		case *float64:
			def := *p
			if fromEnv {
				def = viper.GetFloat64(env)
			}
			flags.Float64VarP(p, cfg.Name, cfg.short(), def, desc)
		case *time.Duration:
			def := *p
			if fromEnv {
				def = viper.GetDuration(env)
			}
			flags.DurationVarP(p, cfg.Name, cfg.short(), def, desc)
		case *[]string:
			def := *p
			if fromEnv {
				def = viper.GetStringSlice(env)
			}
			flags.StringSliceVarP(p, cfg.Name, cfg.short(), def, desc)
		default:
			log.Panicf("command-args parsing error: unhandled default case for type %T", p)
		}

		_ = viper.BindPFlag(cfg.Name, flags.Lookup(cfg.Name))
		_ = viper.BindEnv(cfg.Name, env)

		if cfg.Hidden {
			_ = flags.MarkHidden(cfg.Name)
		}
	}
}
