package motor

// Model coefficients are the exact discretization, at the 5 ms control
// period, of the DC motor whose constants models.ParamsFor lists for the
// same type: voltage and load torque in, angle, speed and current out.
var models = map[Type]*Model{
	TypeEV3Medium: {
		DAngleDSpeed:         475883,
		DSpeedDSpeed:         88884829,
		DCurrentDSpeed:       -41025,
		DAngleDCurrent:       231583,
		DSpeedDCurrent:       53870589,
		DCurrentDCurrent:     -19318,
		DAngleDVoltage:       62808,
		DSpeedDVoltage:       28947837,
		DCurrentDVoltage:     106843,
		DAngleDTorque:        -347933,
		DSpeedDTorque:        -136330545,
		DCurrentDTorque:      50524,
		DVoltageDTorque:      3863636,
		DTorqueDVoltage:      25882353,
		DTorqueDSpeed:        9938110,
		DTorqueDAcceleration: 349066,
		TorqueFriction:       18000,
		FeedbackGain:         1000,
	},
	TypeEV3Large: {
		DAngleDSpeed:         484977,
		DSpeedDSpeed:         92866805,
		DCurrentDSpeed:       -100290,
		DAngleDCurrent:       76038,
		DSpeedDCurrent:       18813362,
		DCurrentDCurrent:     -6762,
		DAngleDVoltage:       20017,
		DSpeedDVoltage:       9504696,
		DCurrentDVoltage:     133633,
		DAngleDTorque:        -50269,
		DSpeedDTorque:        -19847962,
		DCurrentDTorque:      16589,
		DVoltageDTorque:      1627907,
		DTorqueDVoltage:      61428571,
		DTorqueDSpeed:        46101626,
		DTorqueDAcceleration: 2443461,
		TorqueFriction:       16000,
		FeedbackGain:         1000,
	},
	TypeInteractive: {
		DAngleDSpeed:         467097,
		DSpeedDSpeed:         84962462,
		DCurrentDSpeed:       -52980,
		DAngleDCurrent:       229757,
		DSpeedDCurrent:       52177017,
		DCurrentDCurrent:     -27308,
		DAngleDVoltage:       41894,
		DSpeedDVoltage:       19146388,
		DCurrentDVoltage:     67456,
		DAngleDTorque:        -172083,
		DSpeedDTorque:        -66906681,
		DCurrentDTorque:      33417,
		DVoltageDTorque:      2888889,
		DTorqueDVoltage:      34615385,
		DTorqueDSpeed:        27186860,
		DTorqueDAcceleration: 698132,
		TorqueFriction:       11000,
		FeedbackGain:         1000,
	},
	TypeMoveHub: {
		DAngleDSpeed:         483240,
		DSpeedDSpeed:         92268472,
		DCurrentDSpeed:       -45988,
		DAngleDCurrent:       142898,
		DSpeedDCurrent:       33549035,
		DCurrentDCurrent:     -12292,
		DAngleDVoltage:       30977,
		DSpeedDVoltage:       14289804,
		DCurrentDVoltage:     84998,
		DAngleDTorque:        -156013,
		DSpeedDTorque:        -61528027,
		DCurrentDTorque:      24940,
		DVoltageDTorque:      3548387,
		DTorqueDVoltage:      28181818,
		DTorqueDSpeed:        15247831,
		DTorqueDAcceleration: 785398,
		TorqueFriction:       25000,
		FeedbackGain:         1000,
	},
	TypeTechnicL: {
		DAngleDSpeed:         485102,
		DSpeedDSpeed:         93039947,
		DCurrentDSpeed:       -56514,
		DAngleDCurrent:       115775,
		DSpeedDCurrent:       27828450,
		DCurrentDCurrent:     -9661,
		DAngleDVoltage:       27536,
		DSpeedDVoltage:       12863925,
		DCurrentDVoltage:     104451,
		DAngleDTorque:        -117290,
		DSpeedDTorque:        -46323799,
		DCurrentDTorque:      22452,
		DVoltageDTorque:      2903226,
		DTorqueDVoltage:      34444444,
		DTorqueDSpeed:        18636238,
		DTorqueDAcceleration: 1047198,
		TorqueFriction:       26000,
		FeedbackGain:         1000,
	},
	TypeTechnicXL: {
		DAngleDSpeed:         485971,
		DSpeedDSpeed:         93390483,
		DCurrentDSpeed:       -65722,
		DAngleDCurrent:       100986,
		DSpeedDCurrent:       24657367,
		DCurrentDCurrent:     -7491,
		DAngleDVoltage:       26794,
		DSpeedDVoltage:       12623247,
		DCurrentDVoltage:     125519,
		DAngleDTorque:        -100647,
		DSpeedDTorque:        -39777239,
		DCurrentDTorque:      22032,
		DVoltageDTorque:      2500000,
		DTorqueDVoltage:      40000000,
		DTorqueDSpeed:        20943951,
		DTorqueDAcceleration: 1221730,
		TorqueFriction:       13000,
		FeedbackGain:         1000,
	},
	TypeTechnicSAngular: {
		DAngleDSpeed:         474523,
		DSpeedDSpeed:         88397780,
		DCurrentDSpeed:       -33802,
		DAngleDCurrent:       265903,
		DSpeedDCurrent:       60527350,
		DCurrentDCurrent:     -19832,
		DAngleDVoltage:       48657,
		DSpeedDVoltage:       22158608,
		DCurrentDVoltage:     64558,
		DAngleDTorque:        -315701,
		DSpeedDTorque:        -123582621,
		DCurrentDTorque:      38674,
		DVoltageDTorque:      4666667,
		DTorqueDVoltage:      21428571,
		DTorqueDSpeed:        11219974,
		DTorqueDAcceleration: 383972,
		TorqueFriction:       9000,
		FeedbackGain:         700,
	},
	TypeTechnicMAngular: {
		DAngleDSpeed:         481197,
		DSpeedDSpeed:         91306389,
		DCurrentDSpeed:       -42481,
		DAngleDCurrent:       177895,
		DSpeedDCurrent:       41837542,
		DCurrentDCurrent:     -14178,
		DAngleDVoltage:       25651,
		DSpeedDVoltage:       11859695,
		DCurrentDVoltage:     57953,
		DAngleDTorque:        -140073,
		DSpeedDTorque:        -55141110,
		DCurrentDTorque:      20699,
		DVoltageDTorque:      3809524,
		DTorqueDVoltage:      26250000,
		DTorqueDSpeed:        19242255,
		DTorqueDAcceleration: 872665,
		TorqueFriction:       21000,
		FeedbackGain:         1000,
	},
	TypeTechnicLAngular: {
		DAngleDSpeed:         479564,
		DSpeedDSpeed:         90488472,
		DCurrentDSpeed:       -75502,
		DAngleDCurrent:       115951,
		DSpeedDCurrent:       27539929,
		DCurrentDCurrent:     -15533,
		DAngleDVoltage:       24912,
		DSpeedDVoltage:       11595115,
		DCurrentDVoltage:     92042,
		DAngleDTorque:        -77675,
		DSpeedDTorque:        -30530018,
		DCurrentDTorque:      20237,
		DVoltageDTorque:      2127660,
		DTorqueDVoltage:      47000000,
		DTorqueDSpeed:        38554323,
		DTorqueDAcceleration: 1570796,
		TorqueFriction:       23000,
		FeedbackGain:         1500,
	},
}
