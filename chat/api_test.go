package chat

import (
	"testing"

	"storechat/config"
)

func newAPIOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	return newTestOrchestrator(t, &scriptGen{}, &fakeTools{connected: true})
}

func TestStartOrderFlowCreatesSession(t *testing.T) {
	o := newAPIOrchestrator(t)

	id, flow := o.StartOrderFlow("")
	if id == "" {
		t.Fatal("no session id returned")
	}
	if !flow.IsActive || flow.CurrentStep != StepPayment {
		t.Fatalf("flow = %+v, want active at payment", flow)
	}

	got, ok := o.GetOrderFlowStatus(id)
	if !ok {
		t.Fatal("flow not found through the returned session id")
	}
	if got.CurrentStep != StepPayment {
		t.Errorf("CurrentStep = %v", got.CurrentStep)
	}
}

func TestStartOrderFlowRestarts(t *testing.T) {
	o := newAPIOrchestrator(t)

	id, _ := o.StartOrderFlow("")
	if _, ok := o.AdvanceOrderStep(id); !ok {
		t.Fatal("advance failed")
	}
	o.UpdateOrderFlowData(id, map[string]string{"paymentType": "card"})

	_, flow := o.StartOrderFlow(id)
	if flow.CurrentStep != StepPayment {
		t.Errorf("restart left step at %v", flow.CurrentStep)
	}
	if len(flow.CollectedData) != 0 {
		t.Errorf("restart kept collected data %v", flow.CollectedData)
	}
}

func TestOrderFlowAPILifecycle(t *testing.T) {
	o := newAPIOrchestrator(t)
	id, _ := o.StartOrderFlow("")

	if !o.UpdateOrderFlowData(id, map[string]string{"paymentType": "card"}) {
		t.Fatal("UpdateOrderFlowData rejected an active flow")
	}

	step, ok := o.AdvanceOrderStep(id)
	if !ok || step != StepAddress {
		t.Fatalf("AdvanceOrderStep = %v, %v", step, ok)
	}

	flow, ok := o.GetOrderFlowStatus(id)
	if !ok {
		t.Fatal("flow missing")
	}
	if flow.CollectedData["paymentType"] != "card" {
		t.Errorf("CollectedData = %v", flow.CollectedData)
	}

	// The snapshot is a copy: mutating it must not touch the session.
	flow.CollectedData["paymentType"] = "tampered"
	again, _ := o.GetOrderFlowStatus(id)
	if again.CollectedData["paymentType"] != "card" {
		t.Error("snapshot mutation leaked into the session")
	}

	o.CancelOrderFlow(id)
	if _, ok := o.GetOrderFlowStatus(id); ok {
		t.Error("flow still present after cancel")
	}
}

func TestOrderFlowAPIUnknownSession(t *testing.T) {
	o := newAPIOrchestrator(t)

	if _, ok := o.GetOrderFlowStatus("nope"); ok {
		t.Error("status reported for unknown session")
	}
	if o.UpdateOrderFlowData("nope", map[string]string{"k": "v"}) {
		t.Error("update accepted for unknown session")
	}
	if _, ok := o.AdvanceOrderStep("nope"); ok {
		t.Error("advance accepted for unknown session")
	}
	o.CancelOrderFlow("nope")
}

func TestGetSessionSummaryUnknown(t *testing.T) {
	o := newAPIOrchestrator(t)
	if _, ok := o.GetSessionSummary("nope"); ok {
		t.Error("summary reported for unknown session")
	}
}

func TestUpdateOrderFlowDataRequiresActiveFlow(t *testing.T) {
	store := NewStore(config.SessionConfig{HistoryCap: 20, TimeoutMinutes: 30, CleanupIntervalMinutes: 5})
	t.Cleanup(store.Close)
	o := New(store, &scriptGen{}, &fakeTools{connected: true}, &config.Config{StoreName: "Acme Outdoors"})

	store.getOrCreate("s1")
	if o.UpdateOrderFlowData("s1", map[string]string{"k": "v"}) {
		t.Error("update accepted with no flow")
	}
}
