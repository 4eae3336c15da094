package capability

import "testing"

func TestSet(t *testing.T) {
	t.Run("has and add", func(t *testing.T) {
		s := Of(Tokenize)
		if !s.Has(Tokenize) {
			t.Fatal("expected tokenize in set")
		}
		if s.Has(NER) {
			t.Fatal("did not expect ner in set")
		}
		s.Add(Of(NER, SentenceSplit))
		if len(s) != 3 {
			t.Errorf("expected 3 members, got %d", len(s))
		}
	})

	t.Run("sorted follows declaration order", func(t *testing.T) {
		s := Of(Sentiment, Tokenize, Capability("zzz-custom"), SentenceSplit)
		got := s.Strings()
		want := []string{"tokenize", "ssplit", "sentiment", "zzz-custom"}
		if len(got) != len(want) {
			t.Fatalf("got %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("got %v, want %v", got, want)
			}
		}
	})

	t.Run("first missing is deterministic", func(t *testing.T) {
		required := Of(NER, SentenceSplit, Tokenize)
		missing, ok := required.FirstMissing(Of(Tokenize))
		if !ok {
			t.Fatal("expected a missing capability")
		}
		if missing != SentenceSplit {
			t.Errorf("expected ssplit, got %s", missing)
		}

		if _, ok := required.FirstMissing(Of(Tokenize, SentenceSplit, NER)); ok {
			t.Error("expected requirements satisfied")
		}
	})

	t.Run("clone is independent", func(t *testing.T) {
		s := Of(Tokenize)
		c := s.Clone()
		c.Add(Of(Lemma))
		if s.Has(Lemma) {
			t.Error("clone mutated original")
		}
	})

	t.Run("nil set reads", func(t *testing.T) {
		var s Set
		if s.Has(Tokenize) {
			t.Error("nil set should be empty")
		}
		if s.String() != "{}" {
			t.Errorf("unexpected string %q", s.String())
		}
	})
}
