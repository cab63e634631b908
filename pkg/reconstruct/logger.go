package reconstruct

import decoder "github.com/a2mainz/acqu_decoder/pkg"

type nopLogger struct{}

func (nopLogger) Info(string, string) {}
func (nopLogger) Error(string)        {}

var logger decoder.Logger = nopLogger{}

func SetLogger(l decoder.Logger) {
	if l == nil {
		l = nopLogger{}
	}
	logger = l
}
