package logger

// Noop discards everything. Handy default for tests and optional components.
type Noop struct{}

func (n Noop) With(args ...interface{}) Logger { return n }

func (Noop) Debugf(template string, args ...interface{}) {}
func (Noop) Infof(template string, args ...interface{})  {}
func (Noop) Warnf(template string, args ...interface{})  {}
func (Noop) Errorf(template string, args ...interface{}) {}
func (Noop) Fatalf(template string, args ...interface{}) {}

func (Noop) Debugln(args ...interface{}) {}
func (Noop) Infoln(args ...interface{})  {}
func (Noop) Warnln(args ...interface{})  {}
func (Noop) Errorln(args ...interface{}) {}
func (Noop) Fatalln(args ...interface{}) {}

func (Noop) Sync() error { return nil }
