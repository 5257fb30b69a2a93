package search

import (
	"reflect"
	"testing"
)

// Helper to aggregate fixed lines into a single result
func singleResult(t *testing.T, lines ...string) *SearchResult {
	t.Helper()
	all := append([]string{beginJSON("f.txt")}, lines...)
	all = append(all, endJSON("f.txt"))
	results, err := drain(Aggregate(lineSeq(all, nil)))
	if err != nil || len(results) != 1 {
		t.Fatalf("aggregate: %v, %d results", err, len(results))
	}
	return results[0]
}

func TestFromSearchResult_AttachesContext(t *testing.T) {
	res := singleResult(t,
		contextJSON("f.txt", 1, "one"),
		contextJSON("f.txt", 2, "two  "),
		matchJSON("f.txt", 3, "three"),
		contextJSON("f.txt", 4, "four"),
		contextJSON("f.txt", 5, "five"),
	)

	mf := FromSearchResult(res, 2, 2, false)
	want := []MatchedLine{{
		Before: []NumberedLine{{1, "one"}, {2, "two"}},
		Match:  NumberedLine{3, "three"},
		After:  []NumberedLine{{4, "four"}, {5, "five"}},
	}}
	if mf.Path != "f.txt" || !reflect.DeepEqual(mf.Matches, want) {
		t.Errorf("FromSearchResult() = %+v", mf)
	}
}

func TestFromSearchResult_DoesNotStealContext(t *testing.T) {
	res := singleResult(t,
		matchJSON("f.txt", 2, "first"),
		contextJSON("f.txt", 3, "between a"),
		contextJSON("f.txt", 4, "between b"),
		contextJSON("f.txt", 5, "between c"),
		matchJSON("f.txt", 6, "second"),
		matchJSON("f.txt", 7, "third"),
	)

	mf := FromSearchResult(res, 3, 2, false)
	if len(mf.Matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(mf.Matches))
	}

	first := mf.Matches[0]
	if !reflect.DeepEqual(first.After, []NumberedLine{{3, "between a"}, {4, "between b"}}) {
		t.Errorf("first.After = %v", first.After)
	}
	second := mf.Matches[1]
	if !reflect.DeepEqual(second.Before, []NumberedLine{{5, "between c"}}) {
		t.Errorf("second.Before = %v", second.Before)
	}
	if len(second.After) != 0 {
		t.Errorf("adjacent match must stop after context, got %v", second.After)
	}
	third := mf.Matches[2]
	if len(third.Before) != 0 {
		t.Errorf("adjacent match must stop before context, got %v", third.Before)
	}
}

func TestFromSearchResult_EmptyLines(t *testing.T) {
	res := singleResult(t,
		contextJSON("f.txt", 1, "  "),
		matchJSON("f.txt", 2, "hit"),
	)

	if mf := FromSearchResult(res, 1, 0, false); len(mf.Matches[0].Before) != 0 {
		t.Errorf("blank context should be dropped, got %v", mf.Matches[0].Before)
	}
	res = singleResult(t,
		contextJSON("f.txt", 1, "  "),
		matchJSON("f.txt", 2, "hit"),
	)
	mf := FromSearchResult(res, 1, 0, true)
	if !reflect.DeepEqual(mf.Matches[0].Before, []NumberedLine{{1, ""}}) {
		t.Errorf("blank context should be kept, got %v", mf.Matches[0].Before)
	}
}

func TestFromSearchResult_SkipsBinary(t *testing.T) {
	lines := []string{
		beginJSON("blob.bin"),
		`{"type":"match","data":{"path":{"text":"blob.bin"},"lines":{"bytes":"aGVsbG8A"},"line_number":null,"absolute_offset":0,"submatches":[]}}`,
		endJSON("blob.bin"),
	}
	results, err := drain(Aggregate(lineSeq(lines, nil)))
	if err != nil {
		t.Fatal(err)
	}
	if mf := FromSearchResult(results[0], 2, 2, false); len(mf.Matches) != 0 {
		t.Errorf("matches without line numbers should be ignored, got %v", mf.Matches)
	}
}

func TestFromSearchResult_SkipsNonUTF8Lines(t *testing.T) {
	res := singleResult(t,
		`{"type":"context","data":{"path":{"text":"f.txt"},"lines":{"bytes":"Y2Fm6Qo="},"line_number":1,"absolute_offset":0,"submatches":[]}}`,
		`{"type":"match","data":{"path":{"text":"f.txt"},"lines":{"bytes":"Zm9v6Qo="},"line_number":2,"absolute_offset":5,"submatches":[]}}`,
		`{"type":"context","data":{"path":{"text":"f.txt"},"lines":{"text":"between\n"},"line_number":3,"absolute_offset":10,"submatches":[]}}`,
		`{"type":"match","data":{"path":{"text":"f.txt"},"lines":{"text":"foo\n"},"line_number":4,"absolute_offset":18,"submatches":[{"match":{"text":"foo"},"start":0,"end":3}]}}`,
	)

	mf := FromSearchResult(res, 3, 0, false)
	want := []MatchedLine{
		{Before: []NumberedLine{{3, "between"}}, Match: NumberedLine{4, "foo"}},
	}
	if !reflect.DeepEqual(mf.Matches, want) {
		t.Errorf("Matches = %+v, want %+v", mf.Matches, want)
	}
}
