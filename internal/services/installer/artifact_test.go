package installer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		rel    string
		kind   Kind
		target string
	}{
		{"Men.bps", KindUIPackage, "Common/Package/Men.pack"},
		{"sub/dir/Men2.bps", KindUIPackage, "Common/Package/Men2.pack"},
		{"AllMessage_UsEn.bps", KindMessageBundle, "UsEnglish/Message/AllMessage.szs"},
		{"msg/AllMessage_EuDe.bps", KindMessageBundle, "EuGerman/Message/AllMessage.szs"},
		{"AllMessage_JpJa.bps", KindMessageBundle, "JpJapanese/Message/AllMessage.szs"},
		{"cafe_barista_men.bps", KindAudioBank, "Common/Sound/Men/cafe_barista_men.bfsar"},
		{"sound/cafe_barista_men_alt.bps", KindAudioBank, "Common/Sound/Men/cafe_barista_men_alt.bfsar"},
	}

	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			a, err := Classify(tt.rel)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, a.Kind)
			assert.Equal(t, tt.target, a.Target)
			assert.Equal(t, tt.rel, a.Path)
		})
	}
}

func TestClassifyUnknownLanguage(t *testing.T) {
	a, err := Classify("AllMessage_XxYy.bps")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownLanguage)
	assert.Equal(t, KindMessageBundle, a.Kind)
	assert.Equal(t, "XxYy", a.Language)
	assert.Empty(t, a.Target)
}

func TestLanguageTableComplete(t *testing.T) {
	assert.Len(t, LanguageCodes(), 13)
	for _, code := range LanguageCodes() {
		folder, ok := LanguageFolder(code)
		assert.True(t, ok)
		assert.Equal(t, code[:2], folder[:2])
	}
}

func TestResolveRegion(t *testing.T) {
	assert.Equal(t, RegionJPN, ResolveRegion("0005001010040000"))
	assert.Equal(t, RegionUSA, ResolveRegion("0x0005001010040100"))
	assert.Equal(t, RegionEUR, ResolveRegion("00050010-10040200"))
	assert.Equal(t, RegionUnknown, ResolveRegion(""))
	assert.Equal(t, RegionUnknown, ResolveRegion("0005001010040300"))
}
