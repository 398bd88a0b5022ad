package chunk

import (
	"testing"

	"github.com/emrakyz/Av1an/internal/params"
	"github.com/emrakyz/Av1an/internal/scene"
)

func sceneSeq(bounds ...uint64) []scene.Scene {
	scenes := make([]scene.Scene, 0, len(bounds)-1)
	for i := 0; i+1 < len(bounds); i++ {
		scenes = append(scenes, scene.Scene{StartFrame: bounds[i], EndFrame: bounds[i+1]})
	}
	return scenes
}

func assertPartition(t *testing.T, chunks []Chunk, totalFrames uint64) {
	t.Helper()
	var prevEnd uint64
	for i, c := range chunks {
		if c.Idx != i {
			t.Errorf("chunk at position %d has index %d", i, c.Idx)
		}
		if c.StartFrame != prevEnd {
			t.Errorf("chunk %d starts at %d, want %d", i, c.StartFrame, prevEnd)
		}
		if c.EndFrame <= c.StartFrame {
			t.Errorf("chunk %d has empty range", i)
		}
		prevEnd = c.EndFrame
	}
	if prevEnd != totalFrames {
		t.Errorf("chunks cover [0, %d), want [0, %d)", prevEnd, totalFrames)
	}
}

func TestBuildNoMerging(t *testing.T) {
	scenes := sceneSeq(0, 100, 250, 600, 1000)
	chunks, err := Build(scenes, params.New(nil), 1000, 24)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(chunks) != 4 {
		t.Fatalf("got %d chunks, want 4", len(chunks))
	}
	assertPartition(t, chunks, 1000)
}

func TestBuildMergesShortSceneIntoEarlier(t *testing.T) {
	// Scene [100, 110) is undersized and must merge into the earlier chunk.
	scenes := sceneSeq(0, 100, 110, 500)
	chunks, err := Build(scenes, params.New(nil), 500, 24)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].EndFrame != 110 {
		t.Errorf("chunk 0 ends at %d, want 110 (short scene merged into earlier chunk)", chunks[0].EndFrame)
	}
	assertPartition(t, chunks, 500)
}

func TestBuildMergesLeadingShortSceneForward(t *testing.T) {
	// First scene is undersized; with no earlier neighbor it merges into the
	// following scene.
	scenes := sceneSeq(0, 10, 300, 600)
	chunks, err := Build(scenes, params.New(nil), 600, 24)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].StartFrame != 0 || chunks[0].EndFrame != 300 {
		t.Errorf("chunk 0 = [%d, %d), want [0, 300)", chunks[0].StartFrame, chunks[0].EndFrame)
	}
	assertPartition(t, chunks, 600)
}

func TestBuildNeverMergesAcrossOverrides(t *testing.T) {
	override := params.New(map[string]string{"--preset": "8"})
	scenes := sceneSeq(0, 100, 110, 500)
	scenes[1].Override = &override

	chunks, err := Build(scenes, params.New(map[string]string{"--preset": "4"}), 500, 24)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	// The undersized scene keeps its own chunk because its parameters differ.
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if chunks[1].Params.Flags["--preset"] != "8" {
		t.Errorf("chunk 1 preset = %q, want 8", chunks[1].Params.Flags["--preset"])
	}
	assertPartition(t, chunks, 500)
}

func TestBuildPartitionProperty(t *testing.T) {
	// Irregular scene lengths, several below the merge threshold: the output
	// must still partition exactly regardless of merge decisions.
	scenes := sceneSeq(0, 5, 9, 200, 203, 450, 451, 452, 900, 905, 1000)
	chunks, err := Build(scenes, params.New(nil), 1000, 50)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	assertPartition(t, chunks, 1000)
}

func TestBuildRejectsInvalidScenes(t *testing.T) {
	scenes := []scene.Scene{{StartFrame: 0, EndFrame: 100}, {StartFrame: 150, EndFrame: 300}}
	if _, err := Build(scenes, params.New(nil), 300, 24); err == nil {
		t.Error("expected error for gapped scenes")
	}
}

func TestBuildZoneParamsApplied(t *testing.T) {
	override := params.New(map[string]string{"--tune": "2"})
	scenes := sceneSeq(0, 200, 500)
	scenes[1].Override = &override

	chunks, err := Build(scenes, params.New(map[string]string{"--preset": "4"}), 500, 24)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if chunks[1].Params.Flags["--tune"] != "2" {
		t.Errorf("override flag not merged: %v", chunks[1].Params.Flags)
	}
	if chunks[1].Params.Flags["--preset"] != "4" {
		t.Errorf("base flag lost in merge: %v", chunks[1].Params.Flags)
	}
}
