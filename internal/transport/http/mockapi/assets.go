package mockapi

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	httptransport "assetdesk-client/internal/transport/http"
)

// Asset is one inventory item.
type Asset struct {
	ID           int       `json:"id"`
	Tag          string    `json:"asset_tag"`
	Name         string    `json:"name"`
	Category     string    `json:"category"`
	Status       string    `json:"status"`
	AssignedTo   string    `json:"assigned_to,omitempty"`
	PurchaseDate string    `json:"purchase_date,omitempty"`
	Value        float64   `json:"value"`
	CreatedAt    time.Time `json:"created_at"`
}

var assetStatuses = []string{"available", "assigned", "maintenance", "retired"}

type assetRepository struct {
	mu     sync.RWMutex
	items  []Asset
	nextID int
}

func newAssetRepository() *assetRepository {
	return &assetRepository{}
}

func (r *assetRepository) seed(now time.Time) {
	for _, a := range []Asset{
		{Tag: "IT-0001", Name: "ThinkPad X1 Carbon", Category: "laptop", Status: "assigned", AssignedTo: "employee", PurchaseDate: "2024-03-01", Value: 1899},
		{Tag: "IT-0002", Name: "Dell U2723QE", Category: "monitor", Status: "available", PurchaseDate: "2024-05-12", Value: 579.5},
		{Tag: "IT-0003", Name: "Cisco IP Phone 8841", Category: "phone", Status: "maintenance", Value: 215},
	} {
		r.create(a, now)
	}
}

func (r *assetRepository) create(a Asset, now time.Time) Asset {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	a.ID = r.nextID
	a.CreatedAt = now.UTC()
	r.items = append(r.items, a)
	return a
}

func (r *assetRepository) list(status, search string) []Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	search = strings.ToLower(search)
	out := make([]Asset, 0, len(r.items))
	for _, a := range r.items {
		if status != "" && a.Status != status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(a.Name+" "+a.Tag), search) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (r *assetRepository) get(id int) (Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.items {
		if a.ID == id {
			return a, true
		}
	}
	return Asset{}, false
}

func (r *assetRepository) tagTaken(tag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.ContainsFunc(r.items, func(a Asset) bool { return strings.EqualFold(a.Tag, tag) })
}

func (r *assetRepository) delete(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, a := range r.items {
		if a.ID == id {
			r.items = slices.Delete(r.items, i, i+1)
			return true
		}
	}
	return false
}

func (s *Service) handleAssetList(c *gin.Context) {
	items := s.assets.list(c.Query("status"), c.Query("search"))
	c.JSON(http.StatusOK, gin.H{"count": len(items), "results": items})
}

func (s *Service) handleAssetGet(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		httptransport.RespondDetail(c, http.StatusNotFound, "Not found.")
		return
	}
	a, ok := s.assets.get(id)
	if !ok {
		httptransport.RespondDetail(c, http.StatusNotFound, "Not found.")
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Service) handleAssetCreate(c *gin.Context) {
	var req Asset
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondDetail(c, http.StatusBadRequest, "JSON parse error - "+err.Error())
		return
	}

	errs := httptransport.FieldErrors{}
	if strings.TrimSpace(req.Tag) == "" {
		errs.Add("asset_tag", requiredField)
	} else if s.assets.tagTaken(req.Tag) {
		errs.Add("asset_tag", "asset with this asset tag already exists.")
	}
	if strings.TrimSpace(req.Name) == "" {
		errs.Add("name", requiredField)
	}
	if req.Status == "" {
		req.Status = "available"
	} else if !slices.Contains(assetStatuses, req.Status) {
		errs.Add("status", fmt.Sprintf("\"%s\" is not a valid choice.", req.Status))
	}
	if req.Value < 0 {
		errs.Add("value", "Ensure this value is greater than or equal to 0.")
	}
	if len(errs) > 0 {
		httptransport.RespondFieldErrors(c, http.StatusBadRequest, errs)
		return
	}

	created := s.assets.create(req, s.now())
	s.logger.Info("asset %s created by %s", created.Tag, currentUser(c).Username)
	c.JSON(http.StatusCreated, created)
}

func (s *Service) handleAssetDelete(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || !s.assets.delete(id) {
		httptransport.RespondDetail(c, http.StatusNotFound, "Not found.")
		return
	}
	c.Status(http.StatusNoContent)
}

// handleAssetExport streams the filtered inventory as a CSV attachment.
func (s *Service) handleAssetExport(c *gin.Context) {
	items := s.assets.list(c.Query("status"), c.Query("search"))

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"id", "asset_tag", "name", "category", "status", "assigned_to", "purchase_date", "value"})
	for _, a := range items {
		_ = w.Write([]string{
			strconv.Itoa(a.ID),
			a.Tag,
			a.Name,
			a.Category,
			a.Status,
			a.AssignedTo,
			a.PurchaseDate,
			strconv.FormatFloat(a.Value, 'f', 2, 64),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		s.logger.Error("csv export failed: %v", err)
		httptransport.RespondDetail(c, http.StatusInternalServerError, "export failed")
		return
	}

	filename := fmt.Sprintf("assets-%s.csv", s.now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
