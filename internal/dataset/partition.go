package dataset

import "fmt"

// Partition identifies which physical sources contribute entities: one crawl
// strategy, one hashtag campaign, or a union of those.
type Partition string

const (
	Posters            Partition = "posters"
	Mentioners         Partition = "mentioners"
	Retweeters         Partition = "retweeters"
	FluTruxKlan        Partition = "flutruxklan"
	HoldTheLine        Partition = "holdtheline"
	HonkHonk           Partition = "honkhonk"
	TruckerConvoy2022  Partition = "truckerconvoy2022"
	IStandWithTruckers Partition = "istandwithtruckers" // spreadsheet-sourced, not JSON
	AllTimelines       Partition = "all_timelines"
	AllHashtags        Partition = "all_hashtags"
	All                Partition = "all"
)

// folderKeys maps each JSON-backed leaf partition to its symbolic config key.
var folderKeys = map[Partition]string{
	Mentioners:        "mentioners_path",
	Posters:           "posters_path",
	Retweeters:        "retweeters_path",
	FluTruxKlan:       "flutruxklan_path",
	HoldTheLine:       "holdtheline_path",
	HonkHonk:          "honkhonk_path",
	TruckerConvoy2022: "truckerconvoy2022_path",
}

// unionMembers makes union partitions explicit compositions of leaves. The
// spreadsheet campaign is absent here on purpose: it produces already-typed
// entities and is merged in after the JSON union is processed.
var unionMembers = map[Partition][]Partition{
	AllTimelines: {Mentioners, Posters, Retweeters},
	AllHashtags:  {FluTruxKlan, HoldTheLine, HonkHonk, TruckerConvoy2022},
	All:          {Mentioners, Posters, Retweeters, FluTruxKlan, HoldTheLine, HonkHonk, TruckerConvoy2022},
}

func includesSpreadsheet(p Partition) bool {
	return p == All || p == AllHashtags
}

// campaignHashtags names the hashtag each campaign partition was crawled for.
var campaignHashtags = map[Partition]string{
	FluTruxKlan:        "#FluTruxKlan",
	HoldTheLine:        "#HoldTheLine",
	HonkHonk:           "#HonkHonk",
	TruckerConvoy2022:  "#TruckerConvoy2022",
	IStandWithTruckers: "#IStandWithTruckers",
}

// UnknownPartitionError reports a partition outside the closed set.
type UnknownPartitionError struct {
	Partition Partition
}

func (e *UnknownPartitionError) Error() string {
	return fmt.Sprintf("unknown dataset partition %q", string(e.Partition))
}
