// Package model defines the data shapes shared across the upload engine:
// backend identifiers and configuration, upload results, attempts, history
// records, and the ephemeral queue item the CLI/GUI layer renders.
package model

// BackendID names one remote image-hosting target from a closed enumeration.
// There is no parsing step — the set is fixed at compile time and enforced
// by the registry (internal/backend).
type BackendID string

// The closed set of backends picdock knows how to dispatch to.
const (
	BackendWeibo     BackendID = "weibo"
	BackendR2        BackendID = "r2"
	BackendJD        BackendID = "jd"
	BackendNowcoder  BackendID = "nowcoder"
	BackendQiyu      BackendID = "qiyu"
	BackendZhihu     BackendID = "zhihu"
	BackendNami      BackendID = "nami"
	BackendBilibili  BackendID = "bilibili"
	BackendChaoxing  BackendID = "chaoxing"
	BackendSmms      BackendID = "smms"
	BackendGithub    BackendID = "github"
	BackendImgur     BackendID = "imgur"
	BackendTencent   BackendID = "tencent"
	BackendAliyun    BackendID = "aliyun"
	BackendQiniu     BackendID = "qiniu"
	BackendUpyun     BackendID = "upyun"
)

// Partition classifies a backend as user-owned private storage or a
// third-party public platform. Used only for UI grouping — the dispatcher
// treats every backend uniformly.
type Partition int

const (
	PartitionPrivate Partition = iota
	PartitionPublic
)

// Family groups backends by the protocol family implemented in
// internal/backend/*. The registry in internal/engine does not consult it;
// it lists each backend's constructor explicitly.
type Family int

const (
	FamilyS3Compatible Family = iota
	FamilyCookieMultipart
	FamilyTokenAcquired
	FamilyGitContentAPI
)

// AllBackends lists the closed enumeration in a stable order. Callers that
// need to iterate deterministically (config migrations, CLI listings) use
// this instead of ranging over a map.
var AllBackends = []BackendID{
	BackendWeibo, BackendR2, BackendJD, BackendNowcoder, BackendQiyu,
	BackendZhihu, BackendNami, BackendBilibili, BackendChaoxing, BackendSmms,
	BackendGithub, BackendImgur, BackendTencent, BackendAliyun, BackendQiniu,
	BackendUpyun,
}

// BackendFamily maps a backend ID to its protocol family.
func BackendFamily(id BackendID) Family {
	switch id {
	case BackendR2, BackendTencent, BackendAliyun, BackendQiniu, BackendUpyun:
		return FamilyS3Compatible
	case BackendQiyu:
		return FamilyTokenAcquired
	case BackendGithub:
		return FamilyGitContentAPI
	default:
		return FamilyCookieMultipart
	}
}

// OutputFormat controls whether link-format applies a proxy prefix.
type OutputFormat string

const (
	OutputDirect  OutputFormat = "direct"
	OutputProxied OutputFormat = "proxied"
)
