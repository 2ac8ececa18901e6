package log

import "github.com/sirupsen/logrus"

// parseLevels returns every logrus level at or above the severity named by
// level (e.g. "error" returns panic, fatal and error), so a log hook can be
// scoped to a minimum severity with logrus.AddHook(hook, levels...).
func parseLevels(level string) ([]logrus.Level, error) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var levels []logrus.Level
	for _, l := range logrus.AllLevels {
		if l <= parsed {
			levels = append(levels, l)
		}
	}
	return levels, nil
}
