package analysis

import (
	"strings"
	"testing"
)

func collectDemux() (*Demux, *[]LogEvent, *[]BoxAnnotation) {
	logs := &[]LogEvent{}
	boxes := &[]BoxAnnotation{}
	d := NewDemux(
		func(e LogEvent) { *logs = append(*logs, e) },
		func(b BoxAnnotation) { *boxes = append(*boxes, b) },
	)
	return d, logs, boxes
}

func TestDemuxRoutesLines(t *testing.T) {
	d, logs, boxes := collectDemux()

	d.Write("LOG: Detected brand: OVERTURE\n")
	d.Write("BOX: Brand [100, 200, 150, 400]\n")
	d.Write("some ordinary narration\n")
	d.Write(`{"brand":"OVERTURE"}`)

	full, partial := d.Close()

	if len(*logs) != 1 {
		t.Fatalf("expected 1 log event, got %d", len(*logs))
	}
	if (*logs)[0].Text != "Detected brand: OVERTURE" {
		t.Fatalf("unexpected log text: %q", (*logs)[0].Text)
	}
	if len(*boxes) != 1 {
		t.Fatalf("expected 1 box event, got %d", len(*boxes))
	}
	want := BoxAnnotation{Label: "Brand", Rect: [4]int{100, 200, 150, 400}}
	if (*boxes)[0] != want {
		t.Fatalf("unexpected box: %+v", (*boxes)[0])
	}
	if partial.Brand != "OVERTURE" {
		t.Fatalf("expected brand evidence, got %+v", partial)
	}
	if !strings.Contains(full, `{"brand":"OVERTURE"}`) {
		t.Fatalf("trailing partial line missing from full text: %q", full)
	}
}

func TestDemuxChunkingInvariance(t *testing.T) {
	stream := "LOG: Detected brand: OVERTURE\n" +
		"LOG: Detected material: ROCK PLA\n" +
		"BOX: Label [1, 2, 3, 4]\n" +
		"preamble text\n" +
		`{"brand":"OVERTURE","material":"ROCK PLA"}`

	runOnce := func(chunks []string) (string, Partial, []LogEvent, []BoxAnnotation) {
		d, logs, boxes := collectDemux()
		for _, c := range chunks {
			d.Write(c)
		}
		full, partial := d.Close()
		return full, partial, *logs, *boxes
	}

	fullA, partialA, logsA, boxesA := runOnce([]string{stream})

	var oneByOne []string
	for _, r := range stream {
		oneByOne = append(oneByOne, string(r))
	}
	fullB, partialB, logsB, boxesB := runOnce(oneByOne)

	if fullA != fullB {
		t.Fatalf("full text differs by chunking:\n%q\n%q", fullA, fullB)
	}
	if partialA != partialB {
		// Pointer fields make direct comparison too strict; compare values.
		if partialA.Brand != partialB.Brand || partialA.Material != partialB.Material {
			t.Fatalf("partial differs by chunking: %+v vs %+v", partialA, partialB)
		}
	}
	if len(logsA) != len(logsB) || len(logsA) != 2 {
		t.Fatalf("log counts differ: %d vs %d", len(logsA), len(logsB))
	}
	for i := range logsA {
		if logsA[i] != logsB[i] {
			t.Fatalf("log %d differs: %+v vs %+v", i, logsA[i], logsB[i])
		}
	}
	if len(boxesA) != 1 || len(boxesB) != 1 || boxesA[0] != boxesB[0] {
		t.Fatalf("box events differ: %+v vs %+v", boxesA, boxesB)
	}
}

func TestDemuxMarkerSplitAcrossChunks(t *testing.T) {
	d, logs, _ := collectDemux()
	d.Write("LO")
	d.Write("G: Detected mat")
	d.Write("erial: PETG\nrest")
	_, partial := d.Close()

	if len(*logs) != 1 {
		t.Fatalf("expected 1 log event, got %d", len(*logs))
	}
	if partial.Material != "PETG" {
		t.Fatalf("expected material evidence, got %+v", partial)
	}
}

func TestDemuxMalformedBoxDropped(t *testing.T) {
	d, logs, boxes := collectDemux()
	d.Write("BOX: Brand [100, 200, 150]\n") // only 3 coordinates
	d.Write("BOX: Brand [a, b, c, d]\n")
	d.Write("BOX: no brackets at all\n")
	d.Write("LOG: still alive\n")
	d.Close()

	if len(*boxes) != 0 {
		t.Fatalf("malformed boxes should be dropped, got %+v", *boxes)
	}
	if len(*logs) != 1 {
		t.Fatalf("stream should continue after malformed box, got %d logs", len(*logs))
	}
}

func TestDemuxLogWithoutYieldStillForwarded(t *testing.T) {
	d, logs, _ := collectDemux()
	d.Write("LOG: Inspecting the label edge\n")
	_, partial := d.Close()

	if len(*logs) != 1 {
		t.Fatalf("log with no structured yield must still be forwarded")
	}
	if !partial.IsZero() {
		t.Fatalf("no evidence expected, got %+v", partial)
	}
}

func TestDemuxEvidenceAccumulatesMonotonically(t *testing.T) {
	d, _, _ := collectDemux()
	d.Write("LOG: Detected brand: OVERTURE\n")
	d.Write("LOG: Detected material: ROCK PLA\n")
	d.Write("LOG: Checking the barcode region\n")
	_, partial := d.Close()

	if partial.Brand != "OVERTURE" || partial.Material != "ROCK PLA" {
		t.Fatalf("earlier evidence lost: %+v", partial)
	}
}
