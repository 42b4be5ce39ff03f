package qconfig

import (
	"time"

	"github.com/quatton/qsmr/pkg/batch"
	"github.com/quatton/qsmr/pkg/qrunner"
	"github.com/quatton/qsmr/pkg/report"
	"github.com/spf13/viper"
)

// DefaultBinary is the smr executable of the reference analysis.
const DefaultBinary = "~/utils/SMR/smr_Linux_YW"

// Reference panels and eQTL summaries used by the default jobs.
const (
	bfileChr1  = "~/UKB_10K_LD/ukbEURu_imp_chr1_v3_impQC_10k_mac1"
	bfileChr5  = "~/UKB_ref_LD/ukbEURu_imp_chr5_v3_impQC_10k_mac1"
	bfileChr6  = "~/UKB_ref_LD/ukbEURu_imp_chr6_v3_impQC_10k_mac1"
	bfileChr16 = "~/UKB_ref_LD/ukbEURu_imp_chr16_v3_impQC_10k_mac1"

	eqtlGen         = "~/eQTLgen/cis_eQTL_SMR/cis-eQTLs-full_eQTLGen_AF_incl_nr_formatted_20191212.new.txt_besd-dense"
	eqtlGTExBlood   = "~/GTExV8/besd_hg19/Whole_Blood.v8.eqtl_signifpairs_hg19"
	eqtlPsychENCODE = "~/PsychENCODE/Gandal_PsychENCODE_eQTL_HCP100+gPCs20_QTLtools.txt"
)

const vuckovic = "~/data/Blood_Cell_Vuckovic_2020/gcta_formatted/formatted_"

// DefaultOutcomes are the GWAS summaries of the reference analysis, in run
// order.
var DefaultOutcomes = []string{
	vuckovic + "baso_Vuckovic_2020_N",
	vuckovic + "lymph_Vuckovic_2020_N",
	vuckovic + "neut_p_Vuckovic_2020_N",
	vuckovic + "rdw_cv_Vuckovic_2020_N",
	vuckovic + "baso_p_Vuckovic_2020_N",
	vuckovic + "lymph_p_Vuckovic_2020_N",
	vuckovic + "ret_Vuckovic_2020_N",
	vuckovic + "eo_Vuckovic_2020_N",
	vuckovic + "mpv_Vuckovic_2020_N",
	vuckovic + "ret_p_Vuckovic_2020_N",
	vuckovic + "eo_p_Vuckovic_2020_N",
	vuckovic + "mrv_Vuckovic_2020_N",
	vuckovic + "plt_Vuckovic_2020_N",
	vuckovic + "wbc_Vuckovic_2020_N",
	vuckovic + "hlr_Vuckovic_2020_N",
	vuckovic + "mono_Vuckovic_2020_N",
	vuckovic + "pct_Vuckovic_2020_N",
	vuckovic + "hlr_p_Vuckovic_2020_N",
	vuckovic + "mono_p_Vuckovic_2020_N",
	vuckovic + "pdw_Vuckovic_2020_N",
	vuckovic + "irf_Vuckovic_2020_N",
	vuckovic + "neut_Vuckovic_2020_N",
	vuckovic + "rbc_Vuckovic_2020_N",
	"~/data/inflam_ahola_olli_2016/formatted/formatted_IL6_ahola_olli",
	"~/data/CRP_Han_GCST009777_gwascatalogue/fomatted_CRP_Han_GCST009777",
	"~/data/GLGC_lipids_gwas/formatted_jointGwasMc_HDL",
	"~/data/GLGC_lipids_gwas/formatted_jointGwasMc_LDL",
	"~/data/GLGC_lipids_gwas/formatted_jointGwasMc_TG",
	"~/data/openGWAS/formatted_CAD_VDH_UKB_ebiaGCST005194",
	"~/data/openGWAS/formatted_T2D_Xue_ebiaGCST006867",
	"~/data/openGWAS/formatted_BMI_UKB_ukbb19953",
	"~/data/MDD_Howard_2018_no23andme/formatted_PGC_UKB_depression_no23andme",
	"~/data/Neuroticism_Nagel_2018_gwascatalogue/formatted_neuroticism_Nagel_2018",
	"~/data/Neuroticism_Nagel_2018_gwascatalogue/formatted_depressed_affect_Nagel_2018_NatGenet",
	"~/data/Neuroticism_Nagel_2018_gwascatalogue/formatted_worry_Nagel_2018_NatGenet",
}

// defaultJobs returns the reference jobs as generic maps so viper can merge
// them like any other key.
func defaultJobs() []map[string]any {
	job := func(gene, bfile, snp, probe, eqtl, label string) map[string]any {
		return map[string]any{
			"gene":  gene,
			"bfile": bfile,
			"snps":  []string{snp},
			"probe": probe,
			"eqtl":  eqtl,
			"label": label,
		}
	}
	return []map[string]any{
		job("HMGCR", bfileChr5, "rs12916", "ENSG00000113161", eqtlGen, "HMGCR_eQTLGEN"),
		job("ITGAL", bfileChr16, "rs11574938", "ENSG00000005844", eqtlGen, "ITGAL_eQTLGEN"),
		job("HDAC2", bfileChr6, "rs9481408", "ENSG00000196591", eqtlGen, "HDAC2_eQTLGEN"),
		job("HMGCR", bfileChr5, "rs17671591", "ENSG00000113161", eqtlPsychENCODE, "HMGCR_Brain_psychENCODE"),
		job("PCSK9", bfileChr1, "rs12117661", "ENSG00000169174", eqtlGTExBlood, "PCSK9_Blood_GTEX"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("smr.binary", DefaultBinary)
	v.SetDefault("smr.peqtlSmr", 1)
	v.SetDefault("smr.threadNum", 20)
	v.SetDefault("smr.diffFreq", 1)

	v.SetDefault("outputRoot", "./")
	v.SetDefault("workingDir", "")
	v.SetDefault("backend", qrunner.BackendLocal)

	v.SetDefault("policy.onFailure", string(batch.PolicyIgnore))
	v.SetDefault("policy.retries", 0)
	v.SetDefault("policy.timeout", time.Duration(0))

	v.SetDefault("local.logDir", ".qsmr/logs")

	container := qrunner.DefaultContainerConfig()
	for _, prefix := range []string{"docker", "k8s"} {
		v.SetDefault(prefix+".image", container.Image)
		v.SetDefault(prefix+".resources.cpuRequest", container.Resources.CPURequest)
		v.SetDefault(prefix+".resources.memoryRequest", container.Resources.MemoryRequest)
		v.SetDefault(prefix+".resources.cpuLimit", container.Resources.CPULimit)
		v.SetDefault(prefix+".resources.memoryLimit", container.Resources.MemoryLimit)
	}
	v.SetDefault("docker.networkMode", container.NetworkMode)
	v.SetDefault("k8s.namespace", "default")
	v.SetDefault("k8s.queue", "")
	v.SetDefault("k8s.kubeconfig", "")
	v.SetDefault("k8s.dataClaim", "")
	v.SetDefault("k8s.dataPath", "/data")
	v.SetDefault("k8s.pollInterval", 5*time.Second)

	v.SetDefault("artifacts.enabled", false)
	v.SetDefault("artifacts.endpoint", "localhost:9000")
	v.SetDefault("artifacts.accessKey", "")
	v.SetDefault("artifacts.secretKey", "")
	v.SetDefault("artifacts.bucket", "qsmr-artifacts")
	v.SetDefault("artifacts.region", "")
	v.SetDefault("artifacts.useSSL", false)

	v.SetDefault("lock.enabled", false)
	v.SetDefault("lock.ttl", batch.DefaultLeaseTTL)
	v.SetDefault("lock.addr", "localhost:6379")
	v.SetDefault("lock.password", "")
	v.SetDefault("lock.db", 0)
	v.SetDefault("lock.keyPrefix", "")

	v.SetDefault("reports.backend", ReportsFile)
	v.SetDefault("reports.dir", report.DefaultDir)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "qsmr")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.name", "qsmr")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.debug", false)

	v.SetDefault("outcomes", DefaultOutcomes)
	v.SetDefault("jobs", defaultJobs())
}
