// io.go reads serialised MidIR modules and writes compiler output.

package util

import (
	"fmt"
	"os"
)

// ---------------------
// ----- functions -----
// ---------------------

// ReadSource reads the serialised MidIR module named by the options.
func ReadSource(opt Options) ([]byte, error) {
	if len(opt.Src) == 0 {
		return nil, fmt.Errorf("no input module given")
	}
	b, err := os.ReadFile(opt.Src)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", opt.Src, err)
	}
	return b, nil
}

// WriteOutput writes the compiled artifact to the output file, or to stdout
// when no output path is set.
func WriteOutput(opt Options, data []byte) error {
	if len(opt.Out) == 0 {
		_, err := os.Stdout.Write(data)
		return err
	}
	fd, err := os.OpenFile(opt.Out, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := fd.Close(); cerr != nil {
			PrintError("%s", cerr)
		}
	}()
	if _, err := fd.Write(data); err != nil {
		return fmt.Errorf("could not write %s: %w", opt.Out, err)
	}
	return nil
}
