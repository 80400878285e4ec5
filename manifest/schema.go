package manifest

import (
	"fmt"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// MinProgramTTL is the shortest idle time a server program may be given.
const MinProgramTTL = time.Second

// schema constrains a decoded Config. Definitions are closed, so a field
// added to Config must be added here too.
const schema = `
#Duration: =~"^([0-9]+(\\.[0-9]+)?(ns|us|ms|s|m|h))+$"

#Config: {
	vm: {
		"tape-size": int & >=1 & <=16777216
		eof:         "unchanged" | "zero"
	}
	optimizer: {
		level:  int & >=0 & <=1
		passes: [...("promote" | "fold" | "loops" | "demote")]
	}
	cache: {
		enabled: bool
		path:    string
	}
	log: {
		verbosity: int & >=-4 & <=5
		file:      string
	}
	server: {
		addr:          string & !=""
		"run-timeout": #Duration
		"program-ttl": #Duration
	}
}
`

// Validate checks c against the configuration schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()

	def := ctx.CompileString(schema).LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("schema: %w", err)
	}

	val := def.Unify(ctx.Encode(c))
	if err := val.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%s", cueerrors.Details(err, nil))
	}

	for _, d := range []struct {
		key string
		val string
		min time.Duration
	}{
		{"run-timeout", c.Server.RunTimeout, time.Millisecond},
		{"program-ttl", c.Server.ProgramTTL, MinProgramTTL},
	} {
		v, err := time.ParseDuration(d.val)
		if err != nil {
			return fmt.Errorf("server.%s: %w", d.key, err)
		}
		if v < d.min {
			return fmt.Errorf("server.%s: %s is below the minimum %s", d.key, v, d.min)
		}
	}
	return nil
}
