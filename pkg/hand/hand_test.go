package hand

import "testing"

func TestValidate(t *testing.T) {
	full := make([]Landmark, LandmarkCount)

	tests := []struct {
		name    string
		frame   Frame
		wantErr bool
	}{
		{name: "empty frame", frame: Frame{Seq: 1}},
		{name: "one hand", frame: Frame{Seq: 2, Hands: [MaxHands][]Landmark{full, nil}}},
		{name: "two hands", frame: Frame{Seq: 3, Hands: [MaxHands][]Landmark{full, full}}},
		{name: "short hand", frame: Frame{Seq: 4, Hands: [MaxHands][]Landmark{full[:20], nil}}, wantErr: true},
		{name: "long hand", frame: Frame{Seq: 5, Hands: [MaxHands][]Landmark{nil, append(append([]Landmark{}, full...), Landmark{})}}, wantErr: true},
		{name: "empty slice is not absent", frame: Frame{Seq: 6, Hands: [MaxHands][]Landmark{{}, nil}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.frame.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPresentCount(t *testing.T) {
	full := make([]Landmark, LandmarkCount)

	f := Frame{}
	if got := f.PresentCount(); got != 0 {
		t.Errorf("Expected 0 present hands, got %d", got)
	}
	f.Hands[1] = full
	if got := f.PresentCount(); got != 1 {
		t.Errorf("Expected 1 present hand, got %d", got)
	}
	f.Hands[0] = full
	if got := f.PresentCount(); got != 2 {
		t.Errorf("Expected 2 present hands, got %d", got)
	}
}

func TestConnectionsTopology(t *testing.T) {
	if len(Connections) != 23 {
		t.Fatalf("Expected 23 skeleton connections, got %d", len(Connections))
	}

	wristEdges := 0
	for _, c := range Connections {
		for _, idx := range c {
			if idx < 0 || idx >= LandmarkCount {
				t.Errorf("Connection %v references landmark %d out of range", c, idx)
			}
		}
		if c[0] == Wrist {
			wristEdges++
		}
	}
	// One chain root per finger.
	if wristEdges != 5 {
		t.Errorf("Expected 5 connections rooted at the wrist, got %d", wristEdges)
	}
}
