package registry

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/respack/respack/common"
	"github.com/ZanzyTHEbar/respack/respack/resource"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func newRegistry() *Registry {
	return New(zerolog.Nop())
}

func TestIngestApplicationRecord(t *testing.T) {
	r := newRegistry()
	err := r.Ingest([]byte(`{"record":[{"type":"string","name":"app_name","id":"0x01000001"}]}`), false)
	require.NoError(t, err)

	id, ok := r.App(resource.Key{Type: resource.String, Name: "app_name"})
	require.True(t, ok)
	assert.Equal(t, int64(0x01000001), id.ID)
	assert.Equal(t, int64(0), id.Seq)
	assert.Equal(t, "string", id.Type)
	assert.True(t, r.IsAppDefined(0x01000001))
	assert.False(t, r.IsAppDefined(0x01000002))
	assert.Equal(t, 1, r.Len())

	_, ok = r.System(resource.Key{Type: resource.String, Name: "app_name"})
	assert.False(t, ok)
}

func TestIngestDuplicateIDNamesBothRecords(t *testing.T) {
	r := newRegistry()
	err := r.Ingest([]byte(`{"record":[
		{"type":"string","name":"app_name","id":"0x01000001"},
		{"type":"color","name":"brand","id":"0x01000001"}
	]}`), false)

	var ue *common.UniquenessError
	require.True(t, errors.As(err, &ue))
	assert.True(t, errors.Is(err, common.ErrUniqueness))
	assert.Equal(t, []string{"app_name", "brand"}, ue.Names)
	assert.Equal(t, int64(0x01000001), ue.ID)
}

func TestIngestFailureCommitsNothing(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.Ingest([]byte(`{"record":[{"type":"string","name":"kept","id":"0x01000005"}]}`), false))

	err := r.Ingest([]byte(`{"record":[
		{"type":"string","name":"a","id":"0x01000001"},
		{"type":"string","name":"b","id":"0x01000001"}
	]}`), false)
	require.True(t, errors.Is(err, common.ErrUniqueness))

	assert.Equal(t, 1, r.Len())
	assert.False(t, r.IsAppDefined(0x01000001))
	_, ok := r.App(resource.Key{Type: resource.String, Name: "a"})
	assert.False(t, ok)

	// a later clash with an already committed record also leaves the first record out
	err = r.Ingest([]byte(`{"record":[
		{"type":"string","name":"c","id":"0x01000002"},
		{"type":"string","name":"d","id":"0x01000005"}
	]}`), false)
	require.True(t, errors.Is(err, common.ErrUniqueness))
	assert.Equal(t, 1, r.Len())
	assert.False(t, r.IsAppDefined(0x01000002))
}

func TestIngestRejectsTrailingData(t *testing.T) {
	r := newRegistry()
	err := r.Ingest([]byte(`{"record":[{"type":"string","name":"a","id":"0x01000001"}]} trailing-garbage`), false)
	assert.True(t, errors.Is(err, common.ErrValidation))
	assert.Equal(t, 0, r.Len())

	err = r.Ingest([]byte(`{"record":[{"type":"string","name":"a","id":"0x01000001"}]} {}`), false)
	assert.True(t, errors.Is(err, common.ErrValidation))

	require.NoError(t, r.Ingest([]byte("{\"record\":[{\"type\":\"string\",\"name\":\"a\",\"id\":\"0x01000001\"}]}\n  "), false))
	assert.Equal(t, 1, r.Len())
}

func TestIngestDuplicateIDAcrossNamespaces(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.Ingest([]byte(`{"startId":"0x07800000","record":[
		{"type":"color","name":"ohos_id_color_foreground","order":0}
	]}`), true))

	err := r.Ingest([]byte(`{"record":[{"type":"string","name":"mine","id":"0x08000000"}]}`), false)
	require.NoError(t, err)

	r2 := newRegistry()
	require.NoError(t, r2.Ingest([]byte(`{"startId":"0x08000000","record":[
		{"type":"color","name":"sys_color","order":0}
	]}`), true))
	err = r2.Ingest([]byte(`{"record":[{"type":"string","name":"mine","id":"0x08000000"}]}`), false)

	var ue *common.UniquenessError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, []string{"sys_color", "mine"}, ue.Names)
}

func TestIngestDuplicateTypeNameWithinNamespace(t *testing.T) {
	r := newRegistry()
	err := r.Ingest([]byte(`{"record":[
		{"type":"string","name":"app_name","id":"0x01000001"},
		{"type":"string","name":"app_name","id":"0x01000002"}
	]}`), false)
	assert.ErrorIs(t, err, common.ErrUniqueness)

	// same name under a different type is a different key
	r = newRegistry()
	err = r.Ingest([]byte(`{"record":[
		{"type":"string","name":"app_name","id":"0x01000001"},
		{"type":"color","name":"app_name","id":"0x01000002"}
	]}`), false)
	assert.NoError(t, err)
}

func TestIngestSystemRecords(t *testing.T) {
	r := newRegistry()
	err := r.Ingest([]byte(`{"startId":"0x07800000","record":[
		{"type":"color","name":"ohos_id_color_foreground","order":0},
		{"type":"string","name":"ohos_id_text_font_family_regular","order":1},
		{"type":"float","name":"ohos_id_text_size_body1","order":2}
	]}`), true)
	require.NoError(t, err)

	id, ok := r.System(resource.Key{Type: resource.Float, Name: "ohos_id_text_size_body1"})
	require.True(t, ok)
	assert.Equal(t, int64(0x07800002), id.ID)
	assert.Len(t, r.SystemIDs(), 3)
	assert.Empty(t, r.AppIDs())
	assert.False(t, r.IsAppDefined(0x07800000))
}

func TestIngestValidationErrors(t *testing.T) {
	cases := []struct {
		name   string
		doc    string
		system bool
		kind   error
	}{
		{"not an object", `[1,2]`, false, common.ErrValidation},
		{"not json", `{"record":`, false, common.ErrValidation},
		{"record missing", `{}`, false, common.ErrValidation},
		{"record not array", `{"record":{}}`, false, common.ErrValidation},
		{"record empty", `{"record":[]}`, false, common.ErrValidation},
		{"record item not object", `{"record":["x"]}`, false, common.ErrValidation},
		{"type missing", `{"record":[{"name":"a","id":"0x01000000"}]}`, false, common.ErrValidation},
		{"type not string", `{"record":[{"type":1,"name":"a","id":"0x01000000"}]}`, false, common.ErrValidation},
		{"type unknown", `{"record":[{"type":"drawable","name":"a","id":"0x01000000"}]}`, false, common.ErrValidation},
		{"name missing", `{"record":[{"type":"string","id":"0x01000000"}]}`, false, common.ErrValidation},
		{"name null", `{"record":[{"type":"string","name":null,"id":"0x01000000"}]}`, false, common.ErrValidation},
		{"id missing", `{"record":[{"type":"string","name":"a"}]}`, false, common.ErrValidation},
		{"id not string", `{"record":[{"type":"string","name":"a","id":16777216}]}`, false, common.ErrValidation},
		{"id short hex", `{"record":[{"type":"string","name":"a","id":"0x1000000"}]}`, false, common.ErrValidation},
		{"id no prefix", `{"record":[{"type":"string","name":"a","id":"01000000"}]}`, false, common.ErrValidation},
		{"id below range", `{"record":[{"type":"string","name":"a","id":"0x00ffffff"}]}`, false, common.ErrValidation},
		{"id in gap", `{"record":[{"type":"string","name":"a","id":"0x06FFFFFF"}]}`, false, common.ErrValidation},
		{"id in gap high", `{"record":[{"type":"string","name":"a","id":"0x07ffffff"}]}`, false, common.ErrValidation},
		{"id above range", `{"record":[{"type":"string","name":"a","id":"0x41FFFFFF"}]}`, false, common.ErrValidation},
		{"start id missing", `{"record":[{"type":"string","name":"a","order":0}]}`, true, common.ErrConfiguration},
		{"start id not string", `{"startId":7,"record":[{"type":"string","name":"a","order":0}]}`, true, common.ErrConfiguration},
		{"start id not hex", `{"startId":"zz","record":[{"type":"string","name":"a","order":0}]}`, true, common.ErrValidation},
		{"order missing", `{"startId":"0x07800000","record":[{"type":"string","name":"a"}]}`, true, common.ErrValidation},
		{"order mismatch", `{"startId":"0x07800000","record":[{"type":"string","name":"a","order":1}]}`, true, common.ErrValidation},
		{"order not int", `{"startId":"0x07800000","record":[{"type":"string","name":"a","order":0.5}]}`, true, common.ErrValidation},
		{"order quoted", `{"startId":"0x07800000","record":[{"type":"string","name":"a","order":"0"}]}`, true, common.ErrValidation},
		{"system invalid name", `{"startId":"0x07800000","record":[{"type":"string","name":"bad-name","order":0}]}`, true, common.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := newRegistry().Ingest([]byte(tc.doc), tc.system)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.kind)
		})
	}
}

func TestIngestValidRangeBoundaries(t *testing.T) {
	for _, id := range []string{"0x01000000", "0x06FFFFFE", "0x08000000", "0x41FFFFFE"} {
		err := newRegistry().Ingest([]byte(`{"record":[{"type":"string","name":"a","id":"`+id+`"}]}`), false)
		assert.NoError(t, err, id)
	}
}

func TestSystemNameCheckOnlyUnderMask(t *testing.T) {
	// 0x01000000 does not carry the checked bits, so any name is accepted
	err := newRegistry().Ingest([]byte(`{"startId":"0x01000000","record":[{"type":"string","name":"bad-name","order":0}]}`), true)
	assert.NoError(t, err)
}

func TestParseRecordsDoesNotRegister(t *testing.T) {
	ids, err := ParseRecords([]byte(`{"record":[
		{"type":"string","name":"a","id":"0x01000000"},
		{"type":"media","name":"icon","id":"0x01000001"}
	]}`))
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, resource.Key{Type: resource.Media, Name: "icon"}, ids[1].Key())
}

func TestResetApp(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.Ingest([]byte(`{"record":[{"type":"string","name":"a","id":"0x01000000"}]}`), false))
	r.ResetApp()
	assert.Equal(t, 0, r.Len())
	// the id is free again once application declarations are dropped
	assert.NoError(t, r.Ingest([]byte(`{"record":[{"type":"string","name":"b","id":"0x01000000"}]}`), false))
}

// LoaderTestSuite exercises module-level document discovery on an in-memory filesystem.
type LoaderTestSuite struct {
	suite.Suite
	fs afero.Fs
}

func TestLoaderSuite(t *testing.T) {
	suite.Run(t, new(LoaderTestSuite))
}

func (suite *LoaderTestSuite) SetupTest() {
	suite.fs = afero.NewMemMapFs()
}

func (suite *LoaderTestSuite) write(path, content string) {
	require.NoError(suite.T(), afero.WriteFile(suite.fs, path, []byte(content), 0o644))
}

func (suite *LoaderTestSuite) TestLoadsPerInputDeclarations() {
	suite.write(DeclarationPath("/src/entry", false), `{"record":[{"type":"string","name":"a","id":"0x01000010"}]}`)
	suite.write("/tool/id_defined.json", `{"startId":"0x07800000","record":[{"type":"color","name":"fg","order":0}]}`)

	r := newRegistry()
	err := r.LoadModule(suite.fs, LoadOptions{
		Inputs:           []string{"/src/entry", "/src/missing"},
		SysIDDefinedPath: "/tool/id_defined.json",
	})
	require.NoError(suite.T(), err)

	_, ok := r.App(resource.Key{Type: resource.String, Name: "a"})
	assert.True(suite.T(), ok)
	_, ok = r.System(resource.Key{Type: resource.Color, Name: "fg"})
	assert.True(suite.T(), ok)
}

func (suite *LoaderTestSuite) TestStartIDAndDeclarationAreExclusive() {
	suite.write(DeclarationPath("/src/entry", false), `{"record":[{"type":"string","name":"a","id":"0x01000010"}]}`)

	err := newRegistry().LoadModule(suite.fs, LoadOptions{Inputs: []string{"/src/entry"}, StartID: 0x02000000})
	assert.ErrorIs(suite.T(), err, common.ErrConfiguration)
}

func (suite *LoaderTestSuite) TestStartIDWithoutDeclarationIsFine() {
	err := newRegistry().LoadModule(suite.fs, LoadOptions{Inputs: []string{"/src/entry"}, StartID: 0x02000000})
	assert.NoError(suite.T(), err)
}

func (suite *LoaderTestSuite) TestIDDefinedInputReplacesApplicationDeclarations() {
	suite.write(DeclarationPath("/src/entry", false), `{"record":[{"type":"string","name":"a","id":"0x01000010"}]}`)
	suite.write("/cfg/ids.json", `{"record":[{"type":"string","name":"b","id":"0x01000010"}]}`)

	r := newRegistry()
	require.NoError(suite.T(), r.LoadModule(suite.fs, LoadOptions{
		Inputs:         []string{"/src/entry"},
		IDDefinedInput: "/cfg/ids.json",
	}))
	_, ok := r.App(resource.Key{Type: resource.String, Name: "a"})
	assert.False(suite.T(), ok)
	id, ok := r.App(resource.Key{Type: resource.String, Name: "b"})
	assert.True(suite.T(), ok)
	assert.Equal(suite.T(), int64(0x01000010), id.ID)
}

func (suite *LoaderTestSuite) TestCombineLooksAtInputRoot() {
	suite.write(filepath.Join("/combined", "id_defined.json"), `{"record":[{"type":"media","name":"icon","id":"0x01000020"}]}`)

	r := newRegistry()
	require.NoError(suite.T(), r.LoadModule(suite.fs, LoadOptions{Inputs: []string{"/combined"}, Combine: true}))
	assert.True(suite.T(), r.IsAppDefined(0x01000020))
}

func (suite *LoaderTestSuite) TestErrorsCarryDocumentPath() {
	path := DeclarationPath("/src/entry", false)
	suite.write(path, `{"record":[{"type":"string","name":"a","id":"bad"}]}`)

	err := newRegistry().LoadModule(suite.fs, LoadOptions{Inputs: []string{"/src/entry"}})
	require.Error(suite.T(), err)
	assert.Contains(suite.T(), err.Error(), path)
}
