package errext

import "github.com/sirupsen/logrus"

// Fprint logs err at error level through logger, including its formatted
// message and any attached hint field. A nil err is a no-op.
func Fprint(logger logrus.FieldLogger, err error) {
	if err == nil {
		return
	}

	errorText, fields := Format(err)
	logger.WithFields(fields).Error(errorText)
}
