package gmmmml

// Observer receives named telemetry events during fitting: "model" after
// every maximization step, "expectation" after every expectation step, and
// "predict_*" events carrying forecast bands from the predictive component.
//
// Observers are pure: the core never reads anything back from them, so the
// absence of an observer cannot alter search outcomes. Payload values are
// live references to internal state and must not be mutated or retained
// past the call.
type Observer interface {
	Emit(event string, payload map[string]any)
}

func emit(obs Observer, event string, payload map[string]any) {
	if obs != nil {
		obs.Emit(event, payload)
	}
}
