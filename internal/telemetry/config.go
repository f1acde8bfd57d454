package telemetry

import "os"

// The switches are read from the environment on every call:
//
//	AGT_CALIBRATION_MODE      plain-prompt runs; turns on the two below unless set
//	AGT_OBSERVE_JSON          append events to <artifacts>/events.jsonl
//	AGT_PERSIST_API_PAYLOADS  keep request and response bodies under <artifacts>/payloads
//
// "1" enables a switch, any other value disables it.
func envSwitch(name string, def bool) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	return v == "1"
}

func CalibrationModeEnabled() bool {
	return envSwitch("AGT_CALIBRATION_MODE", false)
}

func ObserveEnabled() bool {
	return envSwitch("AGT_OBSERVE_JSON", CalibrationModeEnabled())
}

func PersistPayloadsEnabled() bool {
	return envSwitch("AGT_PERSIST_API_PAYLOADS", CalibrationModeEnabled())
}
