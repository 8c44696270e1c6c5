package version

type GetVersionResponse struct {
	AgentVersion    string `json:"agent_version"`
	Hostname        string `json:"hostname"`
	WorkloadRuntime string `json:"workload_runtime"`
	SampleInterval  string `json:"sample_interval"`
	ProbeListenAddr string `json:"probe_listen_addr"`
	GoVersion       string `json:"go_version"`
	CheckedAtUnix   int64  `json:"checked_at_unix"`
}
