package httpapi

import (
	"encoding/json"
	"errors"
	"html/template"
	"mime"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/ordzaar/internal/app/domain/application"
	"github.com/R3E-Network/ordzaar/internal/app/domain/collection"
	"github.com/R3E-Network/ordzaar/internal/app/services/applications"
	apperrors "github.com/R3E-Network/ordzaar/internal/errors"
	"github.com/R3E-Network/ordzaar/internal/httputil"
	"github.com/R3E-Network/ordzaar/internal/uploads"
)

const multipartMemory = 32 << 20

func (h *handler) applicationRoutes(api *mux.Router) {
	api.HandleFunc("/applications", h.listApplications).Methods(http.MethodGet)
	api.HandleFunc("/applications", h.createApplication).Methods(http.MethodPost)
	api.HandleFunc("/applications/test", h.createTestApplication).Methods(http.MethodPost)
	api.HandleFunc("/applications/test-upload", h.testUpload).Methods(http.MethodPost)
	api.HandleFunc("/applications/upload-test", h.uploadTestForm).Methods(http.MethodGet)
	api.HandleFunc("/applications/debug-uploads", h.debugUploads).Methods(http.MethodGet)
	api.HandleFunc("/applications/{id}", h.getApplication).Methods(http.MethodGet)
	api.HandleFunc("/applications/{id}", h.updateApplication).Methods(http.MethodPut)
	api.Handle("/applications/{id}/status", h.admin(h.updateApplicationStatus)).Methods(http.MethodPut)
	api.HandleFunc("/applications/{id}/assets", h.addApplicationAssets).Methods(http.MethodPut)
	api.HandleFunc("/applications/{id}/finalize", h.finalizeApplication).Methods(http.MethodPut)
}

type applicationPayload struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Creator     string     `json:"creator"`
	Price       flexString `json:"price"`
	Stats       *struct {
		TotalSupply flexInt `json:"totalSupply"`
	} `json:"stats"`
	Assets *struct {
		Images   json.RawMessage `json:"images"`
		Metadata json.RawMessage `json:"metadata"`
	} `json:"assets"`
}

func (h *handler) listApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.app.Applications.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, apps)
}

func (h *handler) getApplication(w http.ResponseWriter, r *http.Request) {
	a, err := h.app.Applications.Get(r.Context(), pathVar(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, a)
}

func (h *handler) createApplication(w http.ResponseWriter, r *http.Request) {
	var payload applicationPayload
	if err := decodeJSON(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}

	in := applications.CreateInput{
		Name:        payload.Name,
		Description: payload.Description,
		Creator:     payload.Creator,
		Price:       payload.Price.Value,
	}
	if payload.Stats != nil {
		in.TotalSupply = payload.Stats.TotalSupply.Value
	}
	if payload.Assets != nil {
		images, err := stringList(payload.Assets.Images)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		in.Images = images
		if meta := rawText(payload.Assets.Metadata); meta != nil {
			in.Metadata = *meta
		}
	}

	created, err := h.app.Applications.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, created)
}

func (h *handler) createTestApplication(w http.ResponseWriter, r *http.Request) {
	created, err := h.app.Applications.CreateTest(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, created)
}

func (h *handler) updateApplication(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name        *string    `json:"name"`
		Description *string    `json:"description"`
		Price       flexString `json:"price"`
		Stats       *struct {
			TotalSupply flexInt `json:"totalSupply"`
		} `json:"stats"`
		Assets *struct {
			Metadata json.RawMessage `json:"metadata"`
		} `json:"assets"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}

	patch := applications.Patch{
		Name:        payload.Name,
		Description: payload.Description,
		Price:       payload.Price.ptr(),
	}
	if payload.Stats != nil {
		patch.TotalSupply = payload.Stats.TotalSupply.ptr()
	}
	if payload.Assets != nil {
		patch.Metadata = rawText(payload.Assets.Metadata)
	}

	updated, err := h.app.Applications.Update(r.Context(), pathVar(r, "id"), patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, updated)
}

type statusResponse struct {
	Success    bool                    `json:"success"`
	Data       application.Application `json:"data"`
	Collection *collection.Collection  `json:"collection,omitempty"`
}

func (h *handler) updateApplicationStatus(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.app.Applications.UpdateStatus(r.Context(), pathVar(r, "id"), application.Status(strings.TrimSpace(payload.Status)))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, statusResponse{Success: true, Data: res.Application, Collection: res.Collection})
}

type assetsResponse struct {
	Success     bool                    `json:"success"`
	Data        application.Application `json:"data"`
	ImagesAdded []string                `json:"imagesAdded"`
}

// addApplicationAssets accepts multipart "images" files or a JSON/form
// "images" field holding one URL or a list of URLs.
func (h *handler) addApplicationAssets(w http.ResponseWriter, r *http.Request) {
	images, err := h.collectImages(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	updated, err := h.app.Applications.AddAssets(r.Context(), pathVar(r, "id"), images)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, assetsResponse{Success: true, Data: updated, ImagesAdded: updated.Assets.Images})
}

func (h *handler) collectImages(w http.ResponseWriter, r *http.Request) ([]string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if h.uploads == nil {
			return nil, apperrors.Upload(errors.New("uploads are not configured"))
		}
		r.Body = http.MaxBytesReader(w, r.Body, uploads.MaxFiles*uploads.MaxFileSize+(1<<20))
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, apperrors.Upload(err)
		}
		if files := r.MultipartForm.File["images"]; len(files) > 0 {
			saved, err := h.uploads.SaveAll(files)
			if err != nil {
				return nil, err
			}
			urls := make([]string, 0, len(saved))
			for _, f := range saved {
				urls = append(urls, f.URL)
			}
			return urls, nil
		}
		var images []string
		for _, v := range r.MultipartForm.Value["images"] {
			if v = strings.TrimSpace(v); v != "" {
				images = append(images, v)
			}
		}
		return images, nil
	case "application/json":
		var payload struct {
			Images json.RawMessage `json:"images"`
		}
		if err := decodeJSON(r, &payload); err != nil {
			return nil, err
		}
		return stringList(payload.Images)
	default:
		return nil, nil
	}
}

func (h *handler) finalizeApplication(w http.ResponseWriter, r *http.Request) {
	finalized, err := h.app.Applications.Finalize(r.Context(), pathVar(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccessMessage(w, http.StatusOK, finalized, "Application finalized successfully")
}

type testUploadResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	File    uploads.File `json:"file"`
	URL     string       `json:"url"`
}

func (h *handler) testUpload(w http.ResponseWriter, r *http.Request) {
	if h.uploads == nil {
		h.writeError(w, r, apperrors.Upload(errors.New("uploads are not configured")))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, uploads.MaxFileSize+(1<<20))
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.writeError(w, r, apperrors.Upload(err))
		return
	}
	files := r.MultipartForm.File["image"]
	if len(files) == 0 {
		h.writeError(w, r, apperrors.BadRequest("No file uploaded"))
		return
	}

	f, err := h.uploads.Save(files[0])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, testUploadResponse{
		Success: true,
		Message: "File uploaded successfully",
		File:    f,
		URL:     "/uploads/" + f.Name,
	})
}

var uploadTestPage = template.Must(template.New("upload-test").Parse(`<!DOCTYPE html>
<html>
<head>
  <title>Upload Test</title>
  <style>
    body { font-family: Arial, sans-serif; max-width: 800px; margin: 0 auto; padding: 20px; }
    .form-group { margin-bottom: 15px; }
    label { display: block; margin-bottom: 5px; }
    button { padding: 10px 15px; background: #4CAF50; color: white; border: none; cursor: pointer; }
    #result { margin-top: 20px; padding: 10px; border: 1px solid #ddd; display: none; }
    #preview { max-width: 300px; margin-top: 10px; }
  </style>
</head>
<body>
  <h1>File Upload Test</h1>
  <form id="uploadForm" enctype="multipart/form-data">
    <div class="form-group">
      <label for="image">Select Image:</label>
      <input type="file" id="image" name="image" accept="image/*">
    </div>
    <button type="submit">Upload</button>
  </form>
  <div id="result">
    <h3>Upload Result:</h3>
    <pre id="resultJson"></pre>
    <img id="preview" src="" alt="Uploaded image preview">
  </div>
  <script>
    document.getElementById('uploadForm').addEventListener('submit', async function (e) {
      e.preventDefault();
      const data = new FormData();
      const input = document.getElementById('image');
      if (input.files.length === 0) { alert('Please select a file'); return; }
      data.append('image', input.files[0]);
      const res = await fetch('{{.Action}}', { method: 'POST', body: data });
      const body = await res.json();
      document.getElementById('result').style.display = 'block';
      document.getElementById('resultJson').textContent = JSON.stringify(body, null, 2);
      if (body.success && body.url) { document.getElementById('preview').src = body.url; }
    });
  </script>
</body>
</html>
`))

func (h *handler) uploadTestForm(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := uploadTestPage.Execute(w, struct{ Action string }{Action: APIPrefix + "/applications/test-upload"}); err != nil {
		h.log.WithContext(r.Context()).WithError(err).Warn("render upload test page")
	}
}

type debugUploadsResponse struct {
	Success    bool            `json:"success"`
	UploadsDir string          `json:"uploadsDir"`
	Files      []uploads.Entry `json:"files"`
	Count      int             `json:"count"`
}

func (h *handler) debugUploads(w http.ResponseWriter, r *http.Request) {
	if h.uploads == nil {
		h.writeError(w, r, apperrors.Internal("Uploads are not configured", nil))
		return
	}
	entries, err := h.uploads.List()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, debugUploadsResponse{
		Success:    true,
		UploadsDir: h.uploads.Dir(),
		Files:      entries,
		Count:      len(entries),
	})
}
