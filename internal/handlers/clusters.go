package handlers

import (
	"net/http"

	"github.com/JNickson/kubelog-viewer/internal/directory"
	"github.com/JNickson/kubelog-viewer/internal/store"
	"github.com/JNickson/kubelog-viewer/internal/utils"
)

type discoveryView struct {
	Entity         string                       `json:"entity"`
	Availability   directory.Availability       `json:"availability"`
	DiscoveryError string                       `json:"discoveryError,omitempty"`
	Clusters       []directory.ClusterResources `json:"clusters"`
}

func newDiscoveryView(st *store.Store) discoveryView {
	clusters := st.ListClusters()
	return discoveryView{
		Entity:         st.Entity(),
		Availability:   directory.Summarize(clusters),
		DiscoveryError: st.DiscoveryError().OrEmpty(),
		Clusters:       clusters,
	}
}

func ClustersHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		utils.WriteJSON(w, http.StatusOK, newDiscoveryView(st))
	}
}
