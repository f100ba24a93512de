package handler_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/inklaunch-api/internal/dto"
)

func TestCompetitionResponseContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("testdata", "competition.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + filepath.ToSlash(schemaPath))
	require.NoError(t, err)

	app := setupCompetitionApp(t)
	status, body := app.do(t, http.MethodPost, "/api/v2/admin/competitions", adminUser, competitionPayload())
	require.Equal(t, http.StatusCreated, status, body.Message)
	created := decode[dto.CompetitionResponse](t, body.Data)

	for _, path := range []string{
		fmt.Sprintf("/api/v2/admin/competitions/%d", created.ID),
		fmt.Sprintf("/api/v2/admin/competitions/%d/publish", created.ID),
		fmt.Sprintf("/api/v2/competitions/%d", created.ID),
	} {
		method := http.MethodGet
		if filepath.Base(path) == "publish" {
			method = http.MethodPost
		}

		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("X-Test-User", strconv.Itoa(int(adminUser.id)))
		req.Header.Set("X-Test-Role", adminUser.role)
		resp, err := app.app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)

		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)

		var payload interface{}
		require.NoError(t, json.Unmarshal(raw, &payload))
		require.NoError(t, schema.Validate(payload), path)
	}
}
